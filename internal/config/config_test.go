package config

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/kozaktomas/traceon/internal/gallery"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"WEB_HOST", "WEB_PORT", "GALLERY_SOURCE", "GALLERY_PATH", "GALLERY_DIM",
		"GALLERY_TOLERANCE", "EXTRACT_TIMEOUT", "MQTT_BROKER", "MQTT_TOPIC", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %q", cfg.Web.Host)
	}
	if cfg.Web.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Web.Port)
	}
	if cfg.Gallery.Source != GallerySourceFile {
		t.Errorf("expected file source, got %q", cfg.Gallery.Source)
	}
	if cfg.Gallery.Dim != 128 {
		t.Errorf("expected dim 128, got %d", cfg.Gallery.Dim)
	}
	if cfg.Gallery.Tolerance != 0.6 {
		t.Errorf("expected tolerance 0.6, got %f", cfg.Gallery.Tolerance)
	}
	if cfg.Extractor.Timeout != 30*time.Second {
		t.Errorf("expected 30s extract timeout, got %v", cfg.Extractor.Timeout)
	}
	if cfg.MQTT.Enabled() {
		t.Error("expected MQTT to be disabled without a broker")
	}
	if cfg.MQTT.Topic != "traceon/sightings" {
		t.Errorf("unexpected default topic %q", cfg.MQTT.Topic)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %q", cfg.Log.Level)
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Run("unset uses hosted frontend", func(t *testing.T) {
		t.Setenv("WEB_ALLOWED_ORIGINS", "")
		os.Unsetenv("WEB_ALLOWED_ORIGINS")

		cfg := Load()
		if len(cfg.Web.AllowedOrigins) != 1 || cfg.Web.AllowedOrigins[0] != "https://traceon-frontend.onrender.com" {
			t.Errorf("expected hosted frontend origin, got %v", cfg.Web.AllowedOrigins)
		}
	})

	t.Run("empty disables default", func(t *testing.T) {
		t.Setenv("WEB_ALLOWED_ORIGINS", "")

		cfg := Load()
		if len(cfg.Web.AllowedOrigins) != 0 {
			t.Errorf("expected no extra origins, got %v", cfg.Web.AllowedOrigins)
		}
	})
}

func TestLoad_GalleryDim(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 128},
		{"0", 0},
		{"512", 512},
		{"-1", 128},
		{"abc", 128},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("GALLERY_DIM", tt.value)
			if got := Load().Gallery.Dim; got != tt.want {
				t.Errorf("GALLERY_DIM=%q: got %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestLoad_GalleryDimZeroInfersFromGallery(t *testing.T) {
	t.Setenv("GALLERY_DIM", "0")
	cfg := Load()

	descriptor := make(gallery.Descriptor, 512)
	for i := range descriptor {
		descriptor[i] = float64(i) / 512
	}

	src := identitySource{{Label: "Jane Doe", Descriptor: descriptor}}
	store, err := gallery.Load(context.Background(), src, cfg.Gallery.Dim)
	if err != nil {
		t.Fatalf("gallery.Load() error = %v", err)
	}
	if store.Dim() != 512 {
		t.Errorf("expected inferred dimension 512, got %d", store.Dim())
	}
}

type identitySource []gallery.Identity

func (s identitySource) Identities(context.Context) ([]gallery.Identity, error) {
	return s, nil
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://traceon-frontend.onrender.com, ,https://example.org")
	t.Setenv("GALLERY_SOURCE", "Postgres")
	t.Setenv("GALLERY_TOLERANCE", "0.45")
	t.Setenv("EXTRACT_TIMEOUT", "5s")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Web.AllowedOrigins[1] != "https://example.org" {
		t.Errorf("unexpected origin %q", cfg.Web.AllowedOrigins[1])
	}
	if cfg.Gallery.Source != GallerySourcePostgres {
		t.Errorf("expected lowercased postgres source, got %q", cfg.Gallery.Source)
	}
	if cfg.Gallery.Tolerance != 0.45 {
		t.Errorf("expected tolerance 0.45, got %f", cfg.Gallery.Tolerance)
	}
	if cfg.Extractor.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Extractor.Timeout)
	}
	if !cfg.MQTT.Enabled() {
		t.Error("expected MQTT to be enabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug, got %q", cfg.Log.Level)
	}
}

func TestEnvInt_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 7},
		{"abc", 7},
		{"-3", 7},
		{"0", 7},
		{"12", 12},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TRACEON_TEST_INT", tt.value)
			if got := envInt("TRACEON_TEST_INT", 7); got != tt.want {
				t.Errorf("envInt(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestEnvFloat_InvalidIsNaN(t *testing.T) {
	t.Setenv("TRACEON_TEST_FLOAT", "not-a-number")
	if got := envFloat("TRACEON_TEST_FLOAT", 0.6); !math.IsNaN(got) {
		t.Errorf("expected NaN for invalid float, got %f", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Gallery: GalleryConfig{Source: GallerySourceFile, Path: "gallery.yaml", Tolerance: 0.6}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid file source", func(c *Config) {}, false},
		{"zero tolerance is allowed", func(c *Config) { c.Gallery.Tolerance = 0 }, false},
		{"negative tolerance", func(c *Config) { c.Gallery.Tolerance = -0.1 }, true},
		{"NaN tolerance", func(c *Config) { c.Gallery.Tolerance = math.NaN() }, true},
		{"infinite tolerance", func(c *Config) { c.Gallery.Tolerance = math.Inf(1) }, true},
		{"file source without path", func(c *Config) { c.Gallery.Path = "" }, true},
		{"postgres without url", func(c *Config) { c.Gallery.Source = GallerySourcePostgres }, true},
		{"postgres with url", func(c *Config) {
			c.Gallery.Source = GallerySourcePostgres
			c.Database.URL = "postgres://localhost/traceon"
		}, false},
		{"mariadb without dsn", func(c *Config) { c.Gallery.Source = GallerySourceMariaDB }, true},
		{"unknown source", func(c *Config) { c.Gallery.Source = "redis" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
