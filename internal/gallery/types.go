// Package gallery holds the curated set of known identities that uploaded
// photos are compared against. A Store is built once at startup from a
// Source and is read-only afterwards, so it can be shared by any number of
// request handlers without locking.
package gallery

import (
	"context"
	"maps"
	"math"
	"slices"
)

// Descriptor is a fixed-length face embedding. Two descriptors are compared by Euclidean distance.
type Descriptor []float64

// Metadata is the flat key-value data returned to callers on a match
// (e.g. status, last_seen_location).
type Metadata map[string]string

// Well-known metadata keys of the gallery file schema. MetaName is never
// stored; responses use it to carry the label.
const (
	MetaName             = "name"
	MetaStatus           = "status"
	MetaLastSeenLocation = "last_seen_location"
)

// Identity is one known person in the gallery.
type Identity struct {
	Label      string
	Descriptor Descriptor
	Metadata   Metadata
}

// clone returns a deep copy so the store never shares memory with its source.
func (i Identity) clone() Identity {
	return Identity{
		Label:      i.Label,
		Descriptor: slices.Clone(i.Descriptor),
		Metadata:   maps.Clone(i.Metadata),
	}
}

// Float32 converts the descriptor for float32 consumers (pgvector, hnsw).
func (d Descriptor) Float32() []float32 {
	out := make([]float32, len(d))
	for i, v := range d {
		out[i] = float32(v)
	}
	return out
}

// FromFloat32 converts a float32 vector back to a Descriptor.
func FromFloat32(v []float32) Descriptor {
	out := make(Descriptor, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// Source supplies gallery identities in gallery order.
type Source interface {
	Identities(ctx context.Context) ([]Identity, error)
}

// Distance returns the Euclidean distance between d and o. Both must have
// the same length.
func (d Descriptor) Distance(o Descriptor) float64 {
	var sum float64
	for i := range d {
		diff := d[i] - o[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
