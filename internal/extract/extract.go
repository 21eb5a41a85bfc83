// Package extract turns image bytes into face descriptors. Detection and
// embedding run in an external service; this package talks to it, prepares
// images for it and caches its answers.
package extract

import (
	"context"
	"errors"

	"github.com/kozaktomas/traceon/internal/gallery"
)

// ErrUnsupportedImage is returned for input that cannot be decoded as an image.
var ErrUnsupportedImage = errors.New("unsupported image")

// Extractor produces one descriptor per detected face. An image without faces
// yields (nil, nil); any failure is a non-nil error.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]gallery.Descriptor, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, image []byte) ([]gallery.Descriptor, error)

func (f ExtractorFunc) Extract(ctx context.Context, image []byte) ([]gallery.Descriptor, error) {
	return f(ctx, image)
}
