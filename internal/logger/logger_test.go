package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/traceon/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestInit_Level(t *testing.T) {
	closer, err := Init(config.LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer closer.Close()

	if log.GetLevel() != log.DebugLevel {
		t.Errorf("expected debug level, got %v", log.GetLevel())
	}
}

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	closer, err := Init(config.LogConfig{Level: "loud"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer closer.Close()

	if log.GetLevel() != log.InfoLevel {
		t.Errorf("expected info level, got %v", log.GetLevel())
	}
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "traceon.log")

	closer, err := Init(config.LogConfig{Level: "info", File: path})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	log.Info("hello from test")
	closer.Close()
	log.SetOutput(os.Stdout)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("expected log line in file, got %q", string(data))
	}
}
