// Package capcut manages the editor process around each export item:
// launch with a project, wait for the main window, focus it, and shut it
// down again. The core loop never touches the process directly; it only
// sees the pixels this package puts on screen.
package capcut

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/giapdang/autocapcut/internal/logging"
)

// Launcher starts and stops the editor. It implements export.Launcher.
type Launcher struct {
	appPath      string
	processName  string
	windowTitle  string
	startupWait  time.Duration
	shutdownWait time.Duration
	pollInterval time.Duration
	log          *logging.Logger
}

// NewLauncher creates a launcher for the editor binary at appPath.
func NewLauncher(appPath string) *Launcher {
	return &Launcher{
		appPath:      appPath,
		processName:  "CapCut.exe",
		windowTitle:  "CapCut",
		startupWait:  60 * time.Second,
		shutdownWait: 10 * time.Second,
		pollInterval: time.Second,
		log:          logging.New("capcut"),
	}
}

// WithWindowTitle overrides the window title substring used for lookup.
func (l *Launcher) WithWindowTitle(title string) *Launcher {
	l.windowTitle = title
	return l
}

// WithProcessName overrides the process image name used for forced kill.
func (l *Launcher) WithProcessName(name string) *Launcher {
	l.processName = name
	return l
}

// WithStartupWait overrides how long Open waits for the main window.
func (l *Launcher) WithStartupWait(d time.Duration) *Launcher {
	l.startupWait = d
	return l
}

// WithLogger replaces the launcher's logger.
func (l *Launcher) WithLogger(log *logging.Logger) *Launcher {
	l.log = log
	return l
}

// Open starts the editor with the given project and blocks until its main
// window exists and has focus, or the startup wait elapses.
func (l *Launcher) Open(ctx context.Context, projectPath string) error {
	var args []string
	if projectPath != "" {
		args = append(args, projectPath)
	}

	l.log.InfoWith("launching editor", map[string]interface{}{
		"path": l.appPath, "project": projectPath,
	})

	cmd := exec.Command(l.appPath, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", l.appPath, err)
	}
	// The editor forks its real UI process, so the started handle is not
	// waited on; the window is the readiness signal.
	go cmd.Wait()

	if !windowManagement {
		return sleepCtx(ctx, l.pollInterval)
	}

	hwnd, err := l.awaitWindow(ctx, l.startupWait)
	if err != nil {
		return err
	}
	return focusWindow(hwnd)
}

// Focus brings the editor window to the foreground.
func (l *Launcher) Focus() error {
	if !windowManagement {
		return nil
	}
	hwnd := findWindowByTitle(l.windowTitle)
	if hwnd == 0 {
		return fmt.Errorf("window %q not found", l.windowTitle)
	}
	return focusWindow(hwnd)
}

// Running reports whether the editor window currently exists.
func (l *Launcher) Running() bool {
	if !windowManagement {
		return false
	}
	return findWindowByTitle(l.windowTitle) != 0
}

// Close asks the editor to quit and escalates to a forced kill when the
// window is still there after the shutdown wait.
func (l *Launcher) Close(ctx context.Context) error {
	if !windowManagement {
		return nil
	}

	hwnd := findWindowByTitle(l.windowTitle)
	if hwnd == 0 {
		return nil
	}

	l.log.Info("closing editor")
	if err := requestClose(hwnd); err != nil {
		return err
	}

	deadline := time.Now().Add(l.shutdownWait)
	for time.Now().Before(deadline) {
		if findWindowByTitle(l.windowTitle) == 0 {
			return nil
		}
		if err := sleepCtx(ctx, l.pollInterval); err != nil {
			return err
		}
	}

	l.log.Warn("editor still running, killing process")
	return killProcess(l.processName)
}

func (l *Launcher) awaitWindow(ctx context.Context, timeout time.Duration) (uintptr, error) {
	deadline := time.Now().Add(timeout)
	for {
		if hwnd := findWindowByTitle(l.windowTitle); hwnd != 0 {
			return hwnd, nil
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("window %q did not appear within %s", l.windowTitle, timeout)
		}
		if err := sleepCtx(ctx, l.pollInterval); err != nil {
			return 0, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
