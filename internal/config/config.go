package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/traceon/internal/constants"
)

// Gallery source names accepted in GALLERY_SOURCE.
const (
	GallerySourceFile     = "file"
	GallerySourcePostgres = "postgres"
	GallerySourceMariaDB  = "mariadb"
)

type Config struct {
	Web       WebConfig
	Gallery   GalleryConfig
	Extractor ExtractorConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	MQTT      MQTTConfig
	Log       LogConfig
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
	UploadDir      string   // where uploads live while they are analyzed (defaults to os.TempDir())
}

type GalleryConfig struct {
	Source    string  // file, postgres or mariadb
	Path      string  // YAML/JSON gallery file for the file source
	Dim       int     // expected descriptor length, GALLERY_DIM=0 infers it from the first identity
	Tolerance float64 // maximum Euclidean distance for a match
}

type ExtractorConfig struct {
	URL       string        // face embedding service, defaults to http://localhost:8000
	Timeout   time.Duration // per-request bound on extraction
	CachePath string        // bbolt file for cached descriptors (optional)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type MariaDBConfig struct {
	DSN string // e.g. traceon:traceon@tcp(mariadb:3306)/traceon
}

type MQTTConfig struct {
	Broker   string // e.g. tcp://mosquitto:1883, empty disables notifications
	ClientID string
	Username string
	Password string
	Topic    string
}

// Enabled reports whether sighting notifications should be published.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type LogConfig struct {
	Level string
	File  string // optional, logs always go to stdout as well
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegInt is envInt that also keeps 0.
func envNonNegInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float.
// Unparseable values are kept as NaN so Validate can reject them instead of silently using the default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// envDuration reads a Go duration string (e.g. "30s").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// allowedOrigins reads WEB_ALLOWED_ORIGINS. Unset means the hosted frontend;
// set but empty allows localhost only.
func allowedOrigins() []string {
	if _, ok := os.LookupEnv("WEB_ALLOWED_ORIGINS"); !ok {
		return []string{constants.DefaultAllowedOrigin}
	}
	return envList("WEB_ALLOWED_ORIGINS")
}

// envString returns the env var or a default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8000),
			AllowedOrigins: allowedOrigins(),
			UploadDir:      os.Getenv("UPLOAD_DIR"),
		},
		Gallery: GalleryConfig{
			Source:    strings.ToLower(envString("GALLERY_SOURCE", GallerySourceFile)),
			Path:      envString("GALLERY_PATH", "gallery.yaml"),
			Dim:       envNonNegInt("GALLERY_DIM", constants.DefaultDescriptorDim),
			Tolerance: envFloat("GALLERY_TOLERANCE", constants.DefaultTolerance),
		},
		Extractor: ExtractorConfig{
			URL:       os.Getenv("EMBEDDING_URL"),
			Timeout:   envDuration("EXTRACT_TIMEOUT", constants.DefaultExtractTimeout),
			CachePath: os.Getenv("EXTRACT_CACHE_PATH"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			ClientID: envString("MQTT_CLIENT_ID", "traceon"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
			Topic:    envString("MQTT_TOPIC", constants.DefaultMQTTTopic),
		},
		Log: LogConfig{
			Level: strings.ToLower(envString("LOG_LEVEL", "info")),
			File:  os.Getenv("LOG_FILE"),
		},
	}
}

// Validate checks settings that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	t := c.Gallery.Tolerance
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return errors.New("GALLERY_TOLERANCE must be a non-negative number")
	}

	switch c.Gallery.Source {
	case GallerySourceFile:
		if c.Gallery.Path == "" {
			return errors.New("GALLERY_PATH is required for the file gallery source")
		}
	case GallerySourcePostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres gallery source")
		}
	case GallerySourceMariaDB:
		if c.MariaDB.DSN == "" {
			return errors.New("MARIADB_DSN is required for the mariadb gallery source")
		}
	default:
		return fmt.Errorf("unknown GALLERY_SOURCE %q (want file, postgres or mariadb)", c.Gallery.Source)
	}
	return nil
}
