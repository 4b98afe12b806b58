// Package geoindex answers "which points are under this click" with an
// R-tree over point positions.
package geoindex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// pointTolerance is the half-size of the rect stored for each point.
	pointTolerance = 1e-9
)

// DefaultTolerance is the click radius in degrees, roughly 50 m at Moscow's
// latitude.
const DefaultTolerance = 0.0005

type entry struct {
	rect *rtreego.Rect
	pt   orb.Point
	n    int
}

func (e *entry) Bounds() *rtreego.Rect {
	return e.rect
}

// Index is a read-mostly spatial index over items of type T. Query results
// keep the order items were given in.
type Index[T any] struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	items []T
}

// New indexes items at the positions returned by pos.
func New[T any](items []T, pos func(T) orb.Point) *Index[T] {
	ix := &Index[T]{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren),
		items: append([]T(nil), items...),
	}
	for i, it := range ix.items {
		pt := pos(it)
		ix.tree.Insert(&entry{
			rect: rtreego.Point{pt.Lon(), pt.Lat()}.ToRect(pointTolerance),
			pt:   pt,
			n:    i,
		})
	}
	return ix
}

// Len returns the number of indexed items.
func (ix *Index[T]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.items)
}

// Items returns a copy of the indexed items in their original order.
func (ix *Index[T]) Items() []T {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]T(nil), ix.items...)
}

// Near returns the items within tolerance degrees of (lon, lat), in original
// order. A non-positive tolerance uses DefaultTolerance.
func (ix *Index[T]) Near(lon, lat, tolerance float64) ([]T, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bounds, err := rtreego.NewRect(
		rtreego.Point{lon - tolerance, lat - tolerance},
		[]float64{2 * tolerance, 2 * tolerance},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid search box: %w", err)
	}

	click := orb.Point{lon, lat}
	var hits []*entry
	for _, s := range ix.tree.SearchIntersect(bounds) {
		e, ok := s.(*entry)
		if !ok {
			continue
		}
		dx, dy := e.pt.Lon()-click.Lon(), e.pt.Lat()-click.Lat()
		if dx*dx+dy*dy <= tolerance*tolerance {
			hits = append(hits, e)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].n < hits[j].n })

	out := make([]T, len(hits))
	for i, e := range hits {
		out[i] = ix.items[e.n]
	}
	return out, nil
}
