package filter

import (
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"

	"dof_filter/internal/dof"
	"dof_filter/internal/flight"
	"dof_filter/internal/geo"
)

// pointEpsilon gives point obstacles a non-zero extent, which the R-tree
// requires (~11 m at the equator).
const pointEpsilon = 0.0001

// Index is an R-tree over obstacle positions. Index.Apply returns the same
// matches as Apply over the same records, but only examines obstacles near
// the path.
type Index struct {
	records []dof.Record
	rtree   *rtreego.Rtree
}

// indexedObstacle wraps a record position for R-tree storage.
type indexedObstacle struct {
	pos      int // Position in Index.records.
	lat, lon float64
}

// Bounds implements rtreego.Spatial.
func (o *indexedObstacle) Bounds() rtreego.Rect {
	rect, _ := rtreego.NewRect(rtreego.Point{o.lon, o.lat}, []float64{pointEpsilon, pointEpsilon})
	return rect
}

// NewIndex builds an index over records. The slice must not be modified
// afterwards.
func NewIndex(records []dof.Record) *Index {
	tree := rtreego.NewTree(2, 25, 50)
	for i, r := range records {
		lat, lon := r.Position()
		tree.Insert(&indexedObstacle{pos: i, lat: lat, lon: lon})
	}
	return &Index{records: records, rtree: tree}
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Records returns the indexed records in input order.
func (ix *Index) Records() []dof.Record {
	return ix.records
}

// Apply is Apply(ix.Records(), path, cfg) using the R-tree to skip obstacles
// that are not within the radius box of any sample.
func (ix *Index) Apply(path flight.Path, cfg Config) []Match {
	if math.IsInf(cfg.RadiusDeg, 0) || math.IsNaN(cfg.RadiusDeg) {
		return Apply(ix.records, path, cfg)
	}

	seen := make(map[int]bool)
	var candidates []int
	for _, s := range path {
		if math.IsNaN(s.Lat) || math.IsNaN(s.Lon) {
			continue
		}
		// Grow by pointEpsilon so obstacles on the box edge are found.
		r := cfg.RadiusDeg + pointEpsilon
		query, err := rtreego.NewRect(
			rtreego.Point{s.Lon - r, s.Lat - r},
			[]float64{2 * r, 2 * r},
		)
		if err != nil {
			continue
		}
		for _, sp := range ix.rtree.SearchIntersect(query) {
			o := sp.(*indexedObstacle)
			if !seen[o.pos] {
				seen[o.pos] = true
				candidates = append(candidates, o.pos)
			}
		}
	}

	slices.Sort(candidates)

	var out []Match
	for _, pos := range candidates {
		if m, ok := match(ix.records[pos], path, cfg); ok {
			out = append(out, m)
		}
	}
	return out
}

// InBounds returns the indexed records whose position lies in b, in input
// order.
func (ix *Index) InBounds(b geo.Bounds) []dof.Record {
	if !b.Valid() {
		return nil
	}
	q := b.Expand(pointEpsilon)
	query, err := rtreego.NewRect(
		rtreego.Point{q.MinLon, q.MinLat},
		[]float64{q.MaxLon - q.MinLon, q.MaxLat - q.MinLat},
	)
	if err != nil {
		return nil
	}

	var positions []int
	for _, sp := range ix.rtree.SearchIntersect(query) {
		o := sp.(*indexedObstacle)
		if b.Contains(o.lat, o.lon) {
			positions = append(positions, o.pos)
		}
	}
	slices.Sort(positions)

	out := make([]dof.Record, len(positions))
	for i, pos := range positions {
		out[i] = ix.records[pos]
	}
	return out
}
