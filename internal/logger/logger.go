// Package logger configures the process-wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kozaktomas/traceon/internal/config"
	log "github.com/sirupsen/logrus"
)

// Init sets level, formatter and outputs of the standard logrus logger.
// Stdout is always written; cfg.File is added when set. The returned closer
// releases the log file and is safe to call when no file was opened.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info'", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	if cfg.File == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0750); err != nil {
		return nopCloser{}, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640) //nolint:gosec // path is from trusted config
	if err != nil {
		return nopCloser{}, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.Infof("Logging additionally to file: %s", cfg.File)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
