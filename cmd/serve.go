package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/traceon/internal/check"
	"github.com/kozaktomas/traceon/internal/config"
	"github.com/kozaktomas/traceon/internal/constants"
	"github.com/kozaktomas/traceon/internal/extract"
	"github.com/kozaktomas/traceon/internal/gallery"
	"github.com/kozaktomas/traceon/internal/logger"
	"github.com/kozaktomas/traceon/internal/notify"
	"github.com/kozaktomas/traceon/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the TraceOn HTTP service.

The gallery is loaded once at startup from GALLERY_SOURCE. An invalid gallery
(empty or duplicate labels, descriptors of the wrong length) stops the server
from starting.

CORS allows localhost and WEB_ALLOWED_ORIGINS. When WEB_ALLOWED_ORIGINS is
unset, https://traceon-frontend.onrender.com is allowed; set it to an empty
value to allow localhost only.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// buildExtractor returns the embedding client, wrapped in the descriptor cache when configured.
func buildExtractor(ctx context.Context, cfg config.ExtractorConfig) (extract.Extractor, func(), error) {
	client := extract.NewClient(cfg.URL)
	if err := client.Health(ctx); err != nil {
		log.WithError(err).Warn("Embedding service is not reachable yet, checks will fail until it is")
	}

	if cfg.CachePath == "" {
		return client, func() {}, nil
	}

	cache, err := extract.OpenCache(cfg.CachePath, client)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{"path": cfg.CachePath, "entries": cache.Len()}).Info("Descriptor cache enabled")
	return cache, func() {
		if err := cache.Close(); err != nil {
			log.WithError(err).Warn("Failed to close descriptor cache")
		}
	}, nil
}

// buildNotifier connects the MQTT publisher when a broker is configured.
func buildNotifier(cfg config.MQTTConfig) (notify.Notifier, func()) {
	if !cfg.Enabled() {
		return notify.Nop{}, func() {}
	}

	publisher := notify.NewMQTTPublisher(cfg)
	if err := publisher.Connect(); err != nil {
		log.WithError(err).Warn("MQTT broker not reachable, will keep retrying in the background")
	}
	return publisher, publisher.Close
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	closer, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := loadGallery(ctx, cfg)
	if err != nil {
		var cfgErr *gallery.ConfigError
		if errors.As(err, &cfgErr) {
			log.WithFields(log.Fields{"index": cfgErr.Index, "label": cfgErr.Label}).Error("Invalid gallery")
		}
		return fmt.Errorf("refusing to start: %w", err)
	}
	log.WithFields(log.Fields{
		"source":    cfg.Gallery.Source,
		"size":      store.Len(),
		"dimension": store.Dim(),
		"tolerance": cfg.Gallery.Tolerance,
	}).Info("Gallery loaded")

	extractor, closeExtractor, err := buildExtractor(ctx, cfg.Extractor)
	if err != nil {
		return err
	}
	defer closeExtractor()

	notifier, closeNotifier := buildNotifier(cfg.MQTT)
	defer closeNotifier()

	svc := check.NewService(store, extractor, cfg.Gallery.Tolerance,
		check.WithTimeout(cfg.Extractor.Timeout),
		check.WithMaxImageSize(constants.MaxImageSize),
		check.WithNotifier(notifier),
	)
	server := web.NewServer(cfg, svc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error during shutdown")
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
