package matcher

import (
	"fmt"
	"math"

	"github.com/kozaktomas/traceon/internal/gallery"
)

// EuclideanDistance returns the L2 distance between two descriptors of equal length.
func EuclideanDistance(a, b gallery.Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d values", ErrDimensionMismatch, len(a), len(b))
	}
	return a.Distance(b), nil
}

// Match scans the gallery in order and returns the first identity whose
// distance to query is at most tolerance. An earlier identity wins even when
// a later one is closer.
//
// An empty gallery never matches. Bad input (invalid tolerance, wrong
// dimensionality, non-finite values) yields KindAnalysisFailed, as does any
// panic while comparing.
func Match(query gallery.Descriptor, store *gallery.Store, tolerance float64) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("matcher panic: %v", r))
		}
	}()

	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance < 0 {
		return Failed(fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerance))
	}
	if store.Len() == 0 {
		return NotMatched()
	}
	if len(query) != store.Dim() {
		return Failed(fmt.Errorf("%w: query has %d values, gallery has %d", ErrDimensionMismatch, len(query), store.Dim()))
	}
	for i, v := range query {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Failed(fmt.Errorf("%w: value %d is not finite", ErrMalformedDescriptor, i))
		}
	}

	for i, id := range store.Entries() {
		d := query.Distance(id.Descriptor)
		if d <= tolerance {
			return Matched(i, id, d)
		}
	}
	return NotMatched()
}
