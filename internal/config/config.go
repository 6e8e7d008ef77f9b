// Package config loads the automation settings from Settings.ini. Every
// value has a working default so a missing file yields a usable config.
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// Config is the full runtime configuration.
type Config struct {
	// Detection
	ConfidenceThreshold float64
	Grayscale           bool
	PollInterval        time.Duration
	OperationTimeout    time.Duration
	ExportTimeout       time.Duration
	ItemTimeout         time.Duration

	// Retry
	MaxRetryAttempts int
	BaseRetryDelay   time.Duration

	// Export
	CompletionStrategy string
	ExportShortcut     string

	// Paths
	AppPath       string
	TemplateDir   string
	ScreenshotDir string
	DatabasePath  string

	// Application window
	WindowTitle string
	ProcessName string
	// CaptureMode is "screen" for full-screen capture or "window" to scope
	// capture to the application window when it exists.
	CaptureMode string

	// Logging
	LogLevel string
}

// Default returns the configuration used when no Settings.ini exists.
func Default() *Config {
	return &Config{
		ConfidenceThreshold: 0.8,
		Grayscale:           true,
		PollInterval:        time.Second,
		OperationTimeout:    30 * time.Second,
		ExportTimeout:       10 * time.Minute,
		ItemTimeout:         15 * time.Minute,
		MaxRetryAttempts:    3,
		BaseRetryDelay:      2 * time.Second,
		CompletionStrategy:  "complete_landmark",
		AppPath:             `C:\Program Files\CapCut\CapCut.exe`,
		TemplateDir:         "templates",
		ScreenshotDir:       "screenshots",
		DatabasePath:        "data/history.db",
		WindowTitle:         "CapCut",
		ProcessName:         "CapCut.exe",
		CaptureMode:         "screen",
		LogLevel:            "info",
	}
}

// LoadFromINI loads configuration from a Settings.ini file. Missing keys
// take the defaults; durations are given in seconds.
func LoadFromINI(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	def := Default()
	section := cfg.Section("Automation")

	config := &Config{}
	config.ConfidenceThreshold = section.Key("confidenceThreshold").MustFloat64(def.ConfidenceThreshold)
	config.Grayscale = section.Key("grayscaleMatching").MustBool(def.Grayscale)
	config.PollInterval = seconds(section, "pollIntervalSeconds", def.PollInterval)
	config.OperationTimeout = seconds(section, "operationTimeoutSeconds", def.OperationTimeout)
	config.ExportTimeout = seconds(section, "exportTimeoutSeconds", def.ExportTimeout)
	config.ItemTimeout = seconds(section, "itemTimeoutSeconds", def.ItemTimeout)

	config.MaxRetryAttempts = section.Key("maxRetryAttempts").MustInt(def.MaxRetryAttempts)
	config.BaseRetryDelay = seconds(section, "baseRetryDelaySeconds", def.BaseRetryDelay)

	config.CompletionStrategy = section.Key("completionStrategy").MustString(def.CompletionStrategy)
	config.ExportShortcut = section.Key("exportShortcut").MustString("")

	paths := cfg.Section("Paths")
	config.AppPath = paths.Key("appPath").MustString(def.AppPath)
	config.TemplateDir = paths.Key("templateDir").MustString(def.TemplateDir)
	config.ScreenshotDir = paths.Key("screenshotDir").MustString(def.ScreenshotDir)
	config.DatabasePath = paths.Key("databasePath").MustString(def.DatabasePath)

	app := cfg.Section("Application")
	config.WindowTitle = app.Key("windowTitle").MustString(def.WindowTitle)
	config.ProcessName = app.Key("processName").MustString(def.ProcessName)
	config.CaptureMode = app.Key("captureMode").MustString(def.CaptureMode)

	config.LogLevel = cfg.Section("Logging").Key("level").MustString(def.LogLevel)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func seconds(section *ini.Section, key string, def time.Duration) time.Duration {
	return time.Duration(section.Key(key).MustFloat64(def.Seconds())*1000) * time.Millisecond
}

func (c *Config) validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidenceThreshold must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("pollIntervalSeconds must be positive")
	}
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("maxRetryAttempts must be at least 1")
	}
	if c.BaseRetryDelay < 0 {
		return fmt.Errorf("baseRetryDelaySeconds must not be negative")
	}
	if c.CaptureMode != "screen" && c.CaptureMode != "window" {
		return fmt.Errorf("captureMode must be screen or window, got %q", c.CaptureMode)
	}
	return nil
}
