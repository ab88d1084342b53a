package geo

import (
	"container/heap"
	"sort"
)

// Seed is a ZIP with a direct owner, used as a neighbor candidate.
type Seed struct {
	Zip        string
	Lat        float64
	Lng        float64
	OwnerEmail string
	DealCount  int64
}

// Neighbor is a seed found near a query point.
type Neighbor struct {
	Zip        string
	Distance   float64
	OwnerEmail string
	DealCount  int64
}

// Index answers bounded nearest-seed queries. It is immutable once built
// and safe for concurrent use.
type Index struct {
	seeds []Seed // sorted by latitude, then zip
}

// NewIndex builds an index over seeds. The input slice is not retained.
func NewIndex(seeds []Seed) *Index {
	sorted := make([]Seed, len(seeds))
	copy(sorted, seeds)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Lat != sorted[j].Lat {
			return sorted[i].Lat < sorted[j].Lat
		}
		return sorted[i].Zip < sorted[j].Zip
	})
	return &Index{seeds: sorted}
}

// Len returns the number of seeds.
func (ix *Index) Len() int {
	return len(ix.seeds)
}

// Nearest returns up to k seeds within radiusMiles of (lat, lng), ordered by
// ascending distance with ties broken by ZIP. A seed at exactly radiusMiles
// is included. Selection keeps a k-sized max-heap, so a query costs
// O(M log k) for the M seeds inside the latitude band.
func (ix *Index) Nearest(lat, lng, radiusMiles float64, k int) []Neighbor {
	if k <= 0 || radiusMiles < 0 || len(ix.seeds) == 0 {
		return nil
	}

	span := latitudeSpan(radiusMiles)
	lo := sort.Search(len(ix.seeds), func(i int) bool { return ix.seeds[i].Lat >= lat-span })

	h := make(farthestFirst, 0, min(k, len(ix.seeds)))
	for i := lo; i < len(ix.seeds) && ix.seeds[i].Lat <= lat+span; i++ {
		s := &ix.seeds[i]
		d := HaversineMiles(lat, lng, s.Lat, s.Lng)
		if d > radiusMiles {
			continue
		}
		n := Neighbor{Zip: s.Zip, Distance: d, OwnerEmail: s.OwnerEmail, DealCount: s.DealCount}
		if len(h) < k {
			heap.Push(&h, n)
			continue
		}
		if closer(n, h[0]) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}

	out := make([]Neighbor, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Neighbor)
	}
	return out
}

// closer orders neighbors by distance, then ZIP.
func closer(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Zip < b.Zip
}

// farthestFirst is a max-heap on (distance, zip): the root is the worst
// neighbor kept so far and the first to be evicted.
type farthestFirst []Neighbor

func (h farthestFirst) Len() int           { return len(h) }
func (h farthestFirst) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h farthestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *farthestFirst) Push(x any) { *h = append(*h, x.(Neighbor)) }

func (h *farthestFirst) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
