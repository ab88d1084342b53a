package geo

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// milesNorth returns the latitude reached by travelling miles due north of lat.
func milesNorth(lat, miles float64) float64 {
	return lat + latitudeSpan(miles)
}

func TestIndex_Empty(t *testing.T) {
	ix := NewIndex(nil)
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Nearest(40, -90, 100, 5))
}

func TestIndex_NoSeedsInRadius(t *testing.T) {
	ix := NewIndex([]Seed{{Zip: "10001", Lat: 40.75, Lng: -73.99, OwnerEmail: "a@x", DealCount: 1}})
	got := ix.Nearest(34.05, -118.24, 25, 5)
	assert.Empty(t, got)
}

func TestIndex_OrderedByDistanceThenZip(t *testing.T) {
	seeds := []Seed{
		{Zip: "00003", Lat: milesNorth(40, 3), Lng: -90, OwnerEmail: "c@x", DealCount: 1},
		{Zip: "00002", Lat: milesNorth(40, 1), Lng: -90, OwnerEmail: "b@x", DealCount: 2},
		{Zip: "00001", Lat: milesNorth(40, 1), Lng: -90, OwnerEmail: "a@x", DealCount: 3},
		{Zip: "00004", Lat: milesNorth(40, 2), Lng: -90, OwnerEmail: "d@x", DealCount: 4},
	}
	ix := NewIndex(seeds)

	got := ix.Nearest(40, -90, 10, 10)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"00001", "00002", "00004", "00003"}, zipsOf(got))
	assert.InDelta(t, 1.0, got[0].Distance, 1e-6)
	assert.Equal(t, "a@x", got[0].OwnerEmail)
	assert.Equal(t, int64(3), got[0].DealCount)
}

func TestIndex_RadiusBoundary(t *testing.T) {
	seed := Seed{Zip: "00001", Lat: 40.5, Lng: -89.7, OwnerEmail: "a@x", DealCount: 1}
	ix := NewIndex([]Seed{seed})

	d := HaversineMiles(40, -90, seed.Lat, seed.Lng)

	assert.Len(t, ix.Nearest(40, -90, d, 5), 1, "seed exactly at the radius is included")
	assert.Empty(t, ix.Nearest(40, -90, d-1, 5), "seed one mile beyond the radius is excluded")
	assert.Len(t, ix.Nearest(40, -90, d+1, 5), 1)
}

func TestIndex_KLargerThanSeeds(t *testing.T) {
	ix := NewIndex([]Seed{
		{Zip: "00001", Lat: 40, Lng: -73, OwnerEmail: "a@x", DealCount: 1},
		{Zip: "00002", Lat: milesNorth(40, 5), Lng: -73, OwnerEmail: "b@x", DealCount: 1},
	})

	var got []Neighbor
	require.NotPanics(t, func() { got = ix.Nearest(40, -73, 25, 1<<62) })
	assert.Equal(t, []string{"00001", "00002"}, zipsOf(got))
}

func TestIndex_CapMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	seeds := make([]Seed, 300)
	for i := range seeds {
		seeds[i] = Seed{
			Zip:        fmt.Sprintf("%05d", i),
			Lat:        39 + rng.Float64()*2,
			Lng:        -91 + rng.Float64()*2,
			OwnerEmail: fmt.Sprintf("rep%d@x", i%7),
			DealCount:  int64(1 + i%5),
		}
	}
	ix := NewIndex(seeds)

	for _, tc := range []struct {
		radius float64
		k      int
	}{
		{25, 15}, {50, 1}, {80, 40}, {5, 3}, {200, 300},
	} {
		t.Run(fmt.Sprintf("r%.0f_k%d", tc.radius, tc.k), func(t *testing.T) {
			got := ix.Nearest(40, -90, tc.radius, tc.k)
			want := bruteForce(seeds, 40, -90, tc.radius, tc.k)
			assert.Equal(t, zipsOf(want), zipsOf(got))
			assert.LessOrEqual(t, len(got), tc.k)
			for _, n := range got {
				assert.LessOrEqual(t, n.Distance, tc.radius)
			}
		})
	}
}

func TestIndex_ExactlyKWhenMoreInRadius(t *testing.T) {
	var seeds []Seed
	for i := 1; i <= 20; i++ {
		seeds = append(seeds, Seed{Zip: fmt.Sprintf("%05d", i), Lat: milesNorth(40, float64(i)), Lng: -90, OwnerEmail: "a@x", DealCount: 1})
	}
	ix := NewIndex(seeds)

	got := ix.Nearest(40, -90, 100, 5)
	assert.Equal(t, []string{"00001", "00002", "00003", "00004", "00005"}, zipsOf(got))
}

func TestIndex_InvalidQuery(t *testing.T) {
	ix := NewIndex([]Seed{{Zip: "00001", Lat: 40, Lng: -90, OwnerEmail: "a@x", DealCount: 1}})
	assert.Empty(t, ix.Nearest(40, -90, 10, 0))
	assert.Empty(t, ix.Nearest(40, -90, -1, 3))
	assert.Len(t, ix.Nearest(40, -90, 0, 3), 1, "zero radius still matches a co-located seed")
}

func TestIndex_ConcurrentQueries(t *testing.T) {
	var seeds []Seed
	for i := 0; i < 50; i++ {
		seeds = append(seeds, Seed{Zip: fmt.Sprintf("%05d", i), Lat: 40 + float64(i)/100, Lng: -90, OwnerEmail: "a@x", DealCount: 1})
	}
	ix := NewIndex(seeds)
	want := ix.Nearest(40.2, -90, 30, 8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, ix.Nearest(40.2, -90, 30, 8))
		}()
	}
	wg.Wait()
}

func TestIndex_DoesNotRetainInput(t *testing.T) {
	seeds := []Seed{{Zip: "00001", Lat: 40, Lng: -90, OwnerEmail: "a@x", DealCount: 1}}
	ix := NewIndex(seeds)
	seeds[0].OwnerEmail = "mutated@x"
	assert.Equal(t, "a@x", ix.Nearest(40, -90, 1, 1)[0].OwnerEmail)
}

func bruteForce(seeds []Seed, lat, lng, radius float64, k int) []Neighbor {
	var all []Neighbor
	for _, s := range seeds {
		d := HaversineMiles(lat, lng, s.Lat, s.Lng)
		if d <= radius {
			all = append(all, Neighbor{Zip: s.Zip, Distance: d, OwnerEmail: s.OwnerEmail, DealCount: s.DealCount})
		}
	}
	sort.Slice(all, func(i, j int) bool { return closer(all[i], all[j]) })
	if len(all) > k {
		all = all[:k]
	}
	return all
}

func zipsOf(ns []Neighbor) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Zip
	}
	return out
}
