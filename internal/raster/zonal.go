package raster

import (
	"math"

	"github.com/ctessum/geom"

	"github.com/isolysis/isocover/internal/coverage"
	"github.com/isolysis/isocover/internal/model"
)

// Aggregate computes zonal statistics for a polygon against an open raster
// handle by sampling the center of every raster cell inside the clipped
// bounding box and testing it for containment (boundary-inclusive, like
// point classification). A geometry overlapping no valid cells yields
// zeroed aggregates with Count == 0, not an error. Bands and intersection
// regions are indistinguishable here: geometry in, stats out.
func Aggregate(ref, rasterID string, g geom.Polygonal, h Handle) model.ZonalStats {
	stats := model.ZonalStats{
		GeometryRef: ref,
		RasterID:    rasterID,
	}
	if g != nil {
		stats.AreaKm2 = g.Area() / 1e6
	}
	if g == nil || h == nil {
		return stats
	}

	gb := g.Bounds()
	rb := h.Bounds()
	minX := math.Max(gb.Min.X, rb.Min.X)
	minY := math.Max(gb.Min.Y, rb.Min.Y)
	maxX := math.Min(gb.Max.X, rb.Max.X)
	maxY := math.Min(gb.Max.Y, rb.Max.Y)
	if minX > maxX || minY > maxY {
		return stats
	}

	dx, dy := h.Resolution()
	// Snap to the raster's cell lattice so the same cells are visited no
	// matter how the geometry bounds land inside them.
	startCol := math.Floor((minX - rb.Min.X) / dx)
	startRow := math.Floor((minY - rb.Min.Y) / dy)

	sum := 0.0
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for y := rb.Min.Y + (startRow+0.5)*dy; y <= maxY; y += dy {
		for x := rb.Min.X + (startCol+0.5)*dx; x <= maxX; x += dx {
			if !coverage.Contains(geom.Point{X: x, Y: y}, g) {
				continue
			}
			v, ok := h.Sample(x, y)
			if !ok {
				continue
			}
			stats.Count++
			sum += v
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
	}
	if stats.Count > 0 {
		stats.Sum = sum
		stats.Mean = sum / float64(stats.Count)
		stats.Min = minV
		stats.Max = maxV
	}
	return stats
}

// Unavailable returns the placeholder stats attached to geometries whose
// raster source failed to open.
func Unavailable(ref, rasterID string, g geom.Polygonal) model.ZonalStats {
	stats := model.ZonalStats{
		GeometryRef: ref,
		RasterID:    rasterID,
		Unavailable: true,
	}
	if g != nil {
		stats.AreaKm2 = g.Area() / 1e6
	}
	return stats
}
