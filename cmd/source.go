package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/kozaktomas/traceon/internal/config"
	"github.com/kozaktomas/traceon/internal/database/mariadb"
	"github.com/kozaktomas/traceon/internal/database/postgres"
	"github.com/kozaktomas/traceon/internal/gallery"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openGallerySource returns the gallery source selected by GALLERY_SOURCE.
// The closer releases database connections once the store has been loaded.
func openGallerySource(ctx context.Context, cfg *config.Config) (gallery.Source, io.Closer, error) {
	switch cfg.Gallery.Source {
	case config.GallerySourceFile:
		return gallery.NewFileSource(cfg.Gallery.Path), nopCloser{}, nil
	case config.GallerySourcePostgres:
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewIdentityRepository(pool), pool, nil
	case config.GallerySourceMariaDB:
		pool, err := mariadb.Open(ctx, &cfg.MariaDB)
		if err != nil {
			return nil, nil, err
		}
		return mariadb.NewIdentityRepository(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown gallery source %q", cfg.Gallery.Source)
	}
}

// loadGallery opens the configured source and loads it into a store.
func loadGallery(ctx context.Context, cfg *config.Config) (*gallery.Store, error) {
	src, closer, err := openGallerySource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s gallery: %w", cfg.Gallery.Source, err)
	}
	defer closer.Close()

	store, err := gallery.Load(ctx, src, cfg.Gallery.Dim)
	if err != nil {
		return nil, fmt.Errorf("loading %s gallery: %w", cfg.Gallery.Source, err)
	}
	return store, nil
}
