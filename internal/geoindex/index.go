// Package geoindex wraps the band and point sets in bounding-box R-trees so
// classification and enumeration can prune candidates before applying exact
// geometric predicates.
package geoindex

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/model"
)

type bandEntry struct {
	band   model.Band
	bounds *geom.Bounds
}

// bandEntry delegates the geom.Geom interface to its bounds so it can be
// stored in the rtree, which only ever calls Bounds().
func (e *bandEntry) Bounds() *geom.Bounds                            { return e.bounds }
func (e *bandEntry) Similar(g geom.Geom, tol float64) bool           { return e.bounds.Similar(g, tol) }
func (e *bandEntry) Transform(t proj.Transformer) (geom.Geom, error) { return e.bounds.Transform(t) }
func (e *bandEntry) Len() int                                        { return e.bounds.Len() }
func (e *bandEntry) Points() func() geom.Point                       { return e.bounds.Points() }

// Index is a static bounding-box index over band geometries. It is built
// once per run and safe for concurrent readers.
type Index struct {
	tree *rtree.Rtree
	size int
}

// New indexes every band with a valid, positive-area geometry. Invalid or
// empty geometries are excluded with a warning; they contain no points and
// contribute no intersections.
func New(bands []model.Band) *Index {
	tree := rtree.NewTree(25, 50)
	size := 0
	for _, b := range bands {
		if b.Geom == nil || b.Geom.Area() <= 0 {
			zap.L().Warn("geoindex: excluding band with invalid or empty geometry",
				zap.String("band", b.ID().String()),
			)
			continue
		}
		tree.Insert(&bandEntry{band: b, bounds: b.Geom.Bounds()})
		size++
	}
	return &Index{tree: tree, size: size}
}

// Len returns the number of indexed bands.
func (ix *Index) Len() int { return ix.size }

// Candidates returns all bands whose bounding box intersects b. This is an
// over-approximation; callers must still apply exact predicates.
func (ix *Index) Candidates(b *geom.Bounds) []model.Band {
	if ix.size == 0 {
		return nil
	}
	hits := ix.tree.SearchIntersect(b)
	out := make([]model.Band, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*bandEntry).band)
	}
	return out
}

// PointCandidates returns the bands whose bounding box contains p.
func (ix *Index) PointCandidates(p geom.Point) []model.Band {
	return ix.Candidates(p.Bounds())
}

type pointEntry struct {
	point  model.Point
	bounds *geom.Bounds
}

func (e *pointEntry) Bounds() *geom.Bounds                            { return e.bounds }
func (e *pointEntry) Similar(g geom.Geom, tol float64) bool           { return e.bounds.Similar(g, tol) }
func (e *pointEntry) Transform(t proj.Transformer) (geom.Geom, error) { return e.bounds.Transform(t) }
func (e *pointEntry) Len() int                                        { return e.bounds.Len() }
func (e *pointEntry) Points() func() geom.Point                       { return e.bounds.Points() }

// PointIndex is the same R-tree discipline over points of interest, used to
// populate region point sets without scanning every point per region.
type PointIndex struct {
	tree *rtree.Rtree
	size int
}

// NewPointIndex indexes the given points by their degenerate bounds.
func NewPointIndex(points []model.Point) *PointIndex {
	tree := rtree.NewTree(25, 50)
	for _, p := range points {
		loc := p.Loc()
		tree.Insert(&pointEntry{point: p, bounds: loc.Bounds()})
	}
	return &PointIndex{tree: tree, size: len(points)}
}

// Len returns the number of indexed points.
func (px *PointIndex) Len() int { return px.size }

// Candidates returns the points whose location falls inside b.
func (px *PointIndex) Candidates(b *geom.Bounds) []model.Point {
	if px.size == 0 {
		return nil
	}
	hits := px.tree.SearchIntersect(b)
	out := make([]model.Point, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*pointEntry).point)
	}
	return out
}
