package gallery

import (
	"context"
	"fmt"
	"iter"
	"math"
	"strings"
)

// Store is the immutable, ordered gallery. The zero value and a nil *Store
// both behave as an empty gallery.
type Store struct {
	identities []Identity
	dim        int
	byLabel    map[string]int // normalized label -> position
}

// Load reads all identities from src and validates them.
// dim is the expected descriptor length; 0 takes it from the first identity.
// Any schema violation is returned as a *ConfigError.
func Load(ctx context.Context, src Source, dim int) (*Store, error) {
	if src == nil {
		return nil, &ConfigError{Index: -1, Reason: "no gallery source configured"}
	}
	if dim < 0 {
		return nil, &ConfigError{Index: -1, Reason: fmt.Sprintf("invalid descriptor dimension %d", dim)}
	}

	identities, err := src.Identities(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading gallery source: %w", err)
	}
	return New(identities, dim)
}

// New builds a store from identities that are already in memory.
func New(identities []Identity, dim int) (*Store, error) {
	s := &Store{
		identities: make([]Identity, 0, len(identities)),
		dim:        dim,
		byLabel:    make(map[string]int, len(identities)),
	}

	for i, id := range identities {
		label := strings.TrimSpace(id.Label)
		if label == "" {
			return nil, &ConfigError{Index: i, Reason: "label is empty"}
		}
		if len(id.Descriptor) == 0 {
			return nil, &ConfigError{Index: i, Label: label, Reason: "descriptor is empty"}
		}
		if s.dim == 0 {
			s.dim = len(id.Descriptor)
		}
		if len(id.Descriptor) != s.dim {
			return nil, &ConfigError{
				Index:  i,
				Label:  label,
				Reason: fmt.Sprintf("descriptor has %d values, expected %d", len(id.Descriptor), s.dim),
			}
		}
		for j, v := range id.Descriptor {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ConfigError{Index: i, Label: label, Reason: fmt.Sprintf("descriptor value %d is not finite", j)}
			}
		}

		if _, ok := id.Metadata[MetaName]; ok {
			return nil, &ConfigError{Index: i, Label: label, Reason: fmt.Sprintf("metadata key %q is reserved for the label", MetaName)}
		}

		key := NormalizeLabel(label)
		if prev, ok := s.byLabel[key]; ok {
			return nil, &ConfigError{
				Index:  i,
				Label:  label,
				Reason: fmt.Sprintf("label duplicates entry %d (%q)", prev, s.identities[prev].Label),
			}
		}

		c := id.clone()
		c.Label = label
		if c.Metadata == nil {
			c.Metadata = Metadata{}
		}
		s.byLabel[key] = len(s.identities)
		s.identities = append(s.identities, c)
	}

	return s, nil
}

// Entries yields identities in load order. The yielded values share memory
// with the store and must not be modified.
func (s *Store) Entries() iter.Seq2[int, Identity] {
	return func(yield func(int, Identity) bool) {
		if s == nil {
			return
		}
		for i, id := range s.identities {
			if !yield(i, id) {
				return
			}
		}
	}
}

// Len returns the number of identities.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.identities)
}

// Dim returns the descriptor dimensionality, 0 for an empty store loaded without an explicit dimension.
func (s *Store) Dim() int {
	if s == nil {
		return 0
	}
	return s.dim
}

// At returns the identity at position i.
func (s *Store) At(i int) (Identity, bool) {
	if s == nil || i < 0 || i >= len(s.identities) {
		return Identity{}, false
	}
	return s.identities[i], true
}

// Get looks an identity up by label. Case, diacritics and dashes are ignored,
// so "jane-doe" finds "Jane Doe".
func (s *Store) Get(label string) (Identity, bool) {
	if s == nil {
		return Identity{}, false
	}
	i, ok := s.byLabel[NormalizeLabel(label)]
	if !ok {
		return Identity{}, false
	}
	return s.identities[i], true
}

// Position returns the gallery position of label, using the same normalized
// lookup as Get.
func (s *Store) Position(label string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.byLabel[NormalizeLabel(label)]
	return i, ok
}
