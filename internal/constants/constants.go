// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching constants
const (
	// DefaultTolerance is the maximum Euclidean distance between two descriptors
	// for them to be considered the same person. Lower values = stricter matching.
	DefaultTolerance = 0.6

	// DefaultDescriptorDim is the descriptor length produced by dlib-style face encoders
	DefaultDescriptorDim = 128

	// DefaultNearestLimit is the default number of identities returned by the diagnostics endpoint
	DefaultNearestLimit = 5

	// MaxNearestLimit caps the diagnostics endpoint
	MaxNearestLimit = 50
)

// HNSW parameters for the diagnostics index. Galleries are small, so recall matters more than speed.
const (
	HNSWMaxNeighbors = 16
	HNSWEfSearch     = 100
)

// Extraction constants
const (
	// DefaultExtractTimeout bounds a single call to the embedding service
	DefaultExtractTimeout = 30 * time.Second

	// MaxImageSize is the maximum dimension (width or height) sent to the embedding service
	MaxImageSize = 1920

	// JPEGQuality is used when re-encoding uploads before extraction
	JPEGQuality = 90
)

// Upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// UploadFormField is the multipart field carrying the photo
	UploadFormField = "file"

	// DefaultAllowedOrigin is the hosted frontend, allowed when WEB_ALLOWED_ORIGINS is unset
	DefaultAllowedOrigin = "https://traceon-frontend.onrender.com"
)

// Notification constants
const (
	// DefaultMQTTTopic is where sighting events are published
	DefaultMQTTTopic = "traceon/sightings"

	// MQTTPublishTimeout bounds waiting for a publish acknowledgement
	MQTTPublishTimeout = 5 * time.Second
)
