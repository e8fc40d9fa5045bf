// Package ranker annotates donors with their distance from a searcher and orders
// them for display.
package ranker

import (
	"sort"

	"github.com/example/donor-finder/internal/geo"
	"github.com/example/donor-finder/internal/models"
)

// UnknownLocationLabel is shown when no distance can be computed.
const UnknownLocationLabel = "N/A Location"

// Result is a donor plus its derived distance fields. It is never persisted.
type Result struct {
	models.Donor
	ComputedDistance geo.Distance `json:"computedDistance"`
	Distance         string       `json:"distance"`
}

// Rank annotates every donor with its distance from ref and, when ref is set,
// orders available donors first and nearer donors before farther ones.
// Without ref the input order is kept. The input slice is not modified.
func Rank(donors []models.Donor, ref *geo.Point) []Result {
	out := make([]Result, len(donors))
	for i, d := range donors {
		out[i] = annotate(d, ref)
	}
	if ref == nil {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Less reports whether a belongs before b: availability first, then distance.
func Less(a, b Result) bool {
	if a.Available != b.Available {
		return a.Available
	}
	return a.ComputedDistance.Less(b.ComputedDistance)
}

func annotate(d models.Donor, ref *geo.Point) Result {
	dist := geo.Between(usable(ref), usable(geo.PointFrom(d.Lat, d.Lng)))
	r := Result{Donor: d, ComputedDistance: dist}
	if dist.IsKnown() {
		r.Distance = dist.Label(UnknownLocationLabel)
		return r
	}
	r.Distance = UnknownLocationLabel
	if d.DistanceLabel != "" && d.DistanceLabel != models.DefaultDistanceLabel {
		r.Distance = d.DistanceLabel
	}
	return r
}

// out-of-range or NaN coordinates count as missing
func usable(p *geo.Point) *geo.Point {
	if p == nil || !p.Valid() {
		return nil
	}
	return p
}
