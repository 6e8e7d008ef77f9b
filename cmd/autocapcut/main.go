// autocapcut runs a batch of project exports against the editor: each
// project file given on the command line is opened, exported by watching
// the screen, and recorded in the history database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/giapdang/autocapcut/internal/capcut"
	"github.com/giapdang/autocapcut/internal/config"
	"github.com/giapdang/autocapcut/internal/cv"
	"github.com/giapdang/autocapcut/internal/export"
	"github.com/giapdang/autocapcut/internal/history"
	"github.com/giapdang/autocapcut/internal/input"
	"github.com/giapdang/autocapcut/internal/logging"
	"github.com/giapdang/autocapcut/pkg/templates"
)

func main() {
	configPath := flag.String("config", "Settings.ini", "path to the settings file")
	templateDir := flag.String("templates", "", "override the template directory")
	strategy := flag.String("strategy", "", "completion strategy: complete_landmark or progress_gone")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: autocapcut [flags] project.json [project.json ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := logging.New("main")

	cfg, err := config.LoadFromINI(*configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WarnWith("settings file not found, using defaults", map[string]interface{}{"path": *configPath})
			cfg = config.Default()
		} else {
			log.Error("failed to load settings", err)
			os.Exit(1)
		}
	}
	if *templateDir != "" {
		cfg.TemplateDir = *templateDir
	}
	if *strategy != "" {
		cfg.CompletionStrategy = *strategy
	}
	applyLogLevel(cfg.LogLevel)

	store := templatesStore(cfg, log)

	db, err := history.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open history database", err)
		os.Exit(1)
	}
	defer db.Close()

	sink := history.NewSink(db, cfg.ScreenshotDir)

	var capturer cv.Capturer = cv.NewScreenCapturer()
	if cfg.CaptureMode == "window" {
		capturer = cv.NewCapturerForWindow(cfg.WindowTitle)
	}
	vision := cv.NewService(capturer, store, cfg.ConfidenceThreshold, cfg.Grayscale)
	dispatcher := input.NewDispatcher(input.NewSynthesizer())

	launcher := capcut.NewLauncher(cfg.AppPath).
		WithWindowTitle(cfg.WindowTitle).
		WithProcessName(cfg.ProcessName)

	machineCfg := export.DefaultConfig()
	machineCfg.PollInterval = cfg.PollInterval
	machineCfg.OperationTimeout = cfg.OperationTimeout
	machineCfg.ExportTimeout = cfg.ExportTimeout
	machineCfg.ItemTimeout = cfg.ItemTimeout
	machineCfg.MaxAttempts = cfg.MaxRetryAttempts
	machineCfg.BaseRetryDelay = cfg.BaseRetryDelay
	if cfg.CompletionStrategy == "progress_gone" {
		machineCfg.Strategy = export.ProgressGone
	}
	if cfg.ExportShortcut != "" {
		machineCfg.ExportShortcut = strings.Split(cfg.ExportShortcut, "+")
	}

	items := make([]export.Item, 0, flag.NArg())
	for _, path := range flag.Args() {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		items = append(items, export.Item{ID: id, ProjectPath: path})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch := export.NewBatch(vision, dispatcher, machineCfg).
		WithLauncher(launcher).
		WithSink(sink)

	var runID int64
	batch.OnStart = func(item export.Item) {
		// Drop any binding left over from the previous item so a failed
		// StartRun never attributes diagnostics to the prior run.
		runID = 0
		sink.BindRun(0)

		id, err := db.StartRun(item.ID, item.ProjectPath)
		if err != nil {
			log.Error("failed to record run start", err)
			return
		}
		runID = id
		sink.BindRun(id)
	}
	batch.OnResult = func(res export.Result) {
		if runID == 0 {
			return
		}
		if err := db.FinishRun(runID, res); err != nil {
			log.Error("failed to record run outcome", err)
		}
		runID = 0
	}

	results := batch.Run(ctx, items)

	failed := 0
	for _, res := range results {
		if res.State != export.StateCompleted {
			failed++
			log.WarnWith("item failed", map[string]interface{}{
				"item": res.ItemID, "reason": string(res.Reason),
			})
		}
	}

	log.InfoWith("batch finished", map[string]interface{}{
		"total": len(items), "processed": len(results), "failed": failed,
	})
	if failed > 0 || len(results) < len(items) {
		os.Exit(1)
	}
}

func templatesStore(cfg *config.Config, log *logging.Logger) cv.TemplateSource {
	store := templates.NewStore(cfg.TemplateDir)
	if err := store.LoadManifestDir(cfg.TemplateDir); err != nil {
		log.WarnWith("no template manifests loaded, relying on path resolution", map[string]interface{}{
			"dir": cfg.TemplateDir, "error": err.Error(),
		})
	}
	return store
}

func applyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logging.SetDefaultLevel(logging.LevelDebug)
	case "warn":
		logging.SetDefaultLevel(logging.LevelWarn)
	case "error":
		logging.SetDefaultLevel(logging.LevelError)
	default:
		logging.SetDefaultLevel(logging.LevelInfo)
	}
}
