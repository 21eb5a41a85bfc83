// Package check runs one uploaded photo through extraction and matching.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/traceon/internal/constants"
	"github.com/kozaktomas/traceon/internal/extract"
	"github.com/kozaktomas/traceon/internal/gallery"
	"github.com/kozaktomas/traceon/internal/matcher"
	"github.com/kozaktomas/traceon/internal/notify"
)

// ErrNoFace is returned by Descriptor when the image has no detectable face.
var ErrNoFace = errors.New("no face found")

// Service checks images against a gallery. It is safe for concurrent use.
type Service struct {
	store     *gallery.Store
	extractor extract.Extractor
	tolerance float64
	timeout   time.Duration
	maxSize   int
	notifier  notify.Notifier

	match func(gallery.Descriptor, *gallery.Store, float64) matcher.Outcome
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier sets where sightings are sent on a match.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithTimeout bounds each extraction call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxImageSize sets the long-edge limit images are shrunk to before extraction.
func WithMaxImageSize(n int) Option {
	return func(s *Service) { s.maxSize = n }
}

// NewService creates a check service over store.
func NewService(store *gallery.Store, extractor extract.Extractor, tolerance float64, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: extractor,
		tolerance: tolerance,
		timeout:   constants.DefaultExtractTimeout,
		maxSize:   constants.MaxImageSize,
		notifier:  notify.Nop{},
		match:     matcher.Match,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the gallery the service matches against.
func (s *Service) Store() *gallery.Store {
	return s.store
}

// Tolerance returns the configured match tolerance.
func (s *Service) Tolerance() float64 {
	return s.tolerance
}

// Descriptor prepares the image and returns the descriptor of its first face.
func (s *Service) Descriptor(ctx context.Context, image []byte) (gallery.Descriptor, error) {
	prepared, err := extract.PrepareImage(image, s.maxSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	descs, err := s.extractor.Extract(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("extracting descriptors: %w", err)
	}
	if len(descs) == 0 {
		return nil, ErrNoFace
	}
	return descs[0], nil
}

// CheckImage returns the outcome for one image. It never fails: every error,
// including a panic, becomes a KindAnalysisFailed outcome.
func (s *Service) CheckImage(ctx context.Context, image []byte) (out matcher.Outcome) {
	checkID := uuid.NewString()
	logger := log.WithField("check_id", checkID)
	start := s.now()

	defer func() {
		if r := recover(); r != nil {
			out = matcher.Failed(fmt.Errorf("check panic: %v", r))
		}
		entry := logger.WithFields(log.Fields{
			"outcome":  out.Kind,
			"duration": s.now().Sub(start).Round(time.Millisecond),
		})
		if out.Kind == matcher.KindAnalysisFailed {
			entry.WithError(out.Err).Warn("Image check failed")
		} else {
			entry.Info("Image checked")
		}
	}()

	query, err := s.Descriptor(ctx, image)
	switch {
	case errors.Is(err, ErrNoFace):
		return matcher.NoFace()
	case err != nil:
		return matcher.Failed(err)
	}

	out = s.match(query, s.store, s.tolerance)
	if out.IsMatch() {
		logger = logger.WithFields(log.Fields{"label": out.Identity.Label, "distance": out.Distance})
		s.notify(ctx, logger, checkID, out)
	}
	return out
}

func (s *Service) notify(ctx context.Context, logger *log.Entry, checkID string, out matcher.Outcome) {
	err := s.notifier.NotifyMatch(ctx, notify.Sighting{
		CheckID:  checkID,
		Label:    out.Identity.Label,
		Metadata: out.Identity.Metadata,
		Distance: out.Distance,
		Time:     s.now().UTC(),
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to publish sighting")
	}
}

// CheckFile reads the image at path and checks it.
func (s *Service) CheckFile(ctx context.Context, path string) matcher.Outcome {
	data, err := os.ReadFile(path) //nolint:gosec // path is created by the caller
	if err != nil {
		return matcher.Failed(fmt.Errorf("reading image: %w", err))
	}
	return s.CheckImage(ctx, data)
}
