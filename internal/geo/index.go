package geo

import (
	"context"
	"sort"
	"sync"
)

// Index keeps donor positions for radius lookups.
type Index interface {
	Upsert(ctx context.Context, id string, p Point) error
	// Nearby returns ids within radiusKm of p, nearest first, at most limit of them.
	Nearby(ctx context.Context, p Point, radiusKm float64, limit int) ([]string, error)
}

type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Point)}
}

func (g *MemoryIndex) Upsert(_ context.Context, id string, p Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.points[id] = p
	return nil
}

// naive scan; fine for the directory sizes we serve
func (g *MemoryIndex) Nearby(_ context.Context, p Point, radiusKm float64, limit int) ([]string, error) {
	g.mu.RLock()
	type pair struct {
		id   string
		dist float64
	}
	arr := make([]pair, 0, len(g.points))
	for id, q := range g.points {
		dist := HaversineKm(p.Lat, p.Lng, q.Lat, q.Lng)
		if radiusKm > 0 && dist > radiusKm {
			continue
		}
		arr = append(arr, pair{id, dist})
	}
	g.mu.RUnlock()

	sort.Slice(arr, func(i, j int) bool {
		if arr[i].dist != arr[j].dist {
			return arr[i].dist < arr[j].dist
		}
		return arr[i].id < arr[j].id
	})
	if limit > 0 && len(arr) > limit {
		arr = arr[:limit]
	}
	out := make([]string, 0, len(arr))
	for _, a := range arr {
		out = append(out, a.id)
	}
	return out, nil
}
