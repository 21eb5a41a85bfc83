package gallery

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/traceon/internal/constants"
)

// ErrDimensionMismatch is returned when a query descriptor does not have the
// gallery's dimensionality.
var ErrDimensionMismatch = errors.New("descriptor dimension mismatch")

// Neighbor is one result of a nearest-identity search.
type Neighbor struct {
	Position int
	Identity Identity
	Distance float64
}

// NearestIndex answers "which identities are closest to this descriptor"
// over an HNSW graph. It is a diagnostics aid for tuning the tolerance and
// is not part of matching, which always scans the gallery in order.
type NearestIndex struct {
	store *Store
	graph *hnsw.Graph[int] // keyed by gallery position, built on first use
	mu    sync.RWMutex
}

// NewNearestIndex creates an index over the store.
func NewNearestIndex(s *Store) *NearestIndex {
	return &NearestIndex{store: s}
}

func (x *NearestIndex) build() {
	g := hnsw.NewGraph[int]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, id := range x.store.Entries() {
		g.Add(hnsw.MakeNode(i, id.Descriptor.Float32()))
	}
	x.graph = g
}

func (x *NearestIndex) ensureBuilt() {
	x.mu.RLock()
	built := x.graph != nil
	x.mu.RUnlock()
	if built {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.graph == nil {
		x.build()
	}
}

// Nearest returns up to k identities closest to query, closest first.
// Distances are recomputed exactly in float64, ties keep gallery order.
func (x *NearestIndex) Nearest(query Descriptor, k int) ([]Neighbor, error) {
	if k <= 0 || x.store.Len() == 0 {
		return nil, nil
	}
	if len(query) != x.store.Dim() {
		return nil, fmt.Errorf("%w: got %d values, gallery has %d", ErrDimensionMismatch, len(query), x.store.Dim())
	}

	x.ensureBuilt()

	x.mu.RLock()
	nodes := x.graph.Search(query.Float32(), k)
	x.mu.RUnlock()

	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		id, ok := x.store.At(n.Key)
		if !ok {
			continue
		}
		out = append(out, Neighbor{Position: n.Key, Identity: id, Distance: query.Distance(id.Descriptor)})
	}

	slices.SortStableFunc(out, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return out, nil
}

// Len returns the number of indexed identities.
func (x *NearestIndex) Len() int {
	return x.store.Len()
}
