package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

var logFile *os.File

/*
Config controls the global logger. An empty File logs to stderr.
*/
type Config struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	File         string `mapstructure:"file"`
	ReportCaller bool   `mapstructure:"report_caller"`
}

/*
Init configures the global charmbracelet logger. Calling it again closes
a log file opened by an earlier call.
*/
func Init(cfg Config) error {
	var out io.Writer = os.Stderr

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		fh, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)

		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}

		Close()
		logFile = fh
		out = fh
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportCaller:    cfg.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.StampMicro,
	})

	if cfg.Level != "" {
		level, err := log.ParseLevel(cfg.Level)

		if err != nil {
			return err
		}

		logger.SetLevel(level)
	}

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(log.TextFormatter)
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		return fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	log.SetDefault(logger)
	return nil
}

// Close closes the log file, if any.
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
