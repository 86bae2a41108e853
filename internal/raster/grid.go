package raster

import (
	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
)

// Grid is an in-memory raster: a row-major array of cell values with the
// first row at the top (maximum Y), matching GeoTIFF layout. It backs both
// decoded GeoTIFF files and synthetic rasters in tests.
type Grid struct {
	minX, maxY float64 // origin: upper-left corner
	dx, dy     float64
	nx, ny     int
	vals       []float64
	nodata     *float64
}

// NewGrid builds a grid from upper-left origin, cell sizes, dimensions and
// row-major values (top row first).
func NewGrid(minX, maxY, dx, dy float64, nx, ny int, vals []float64, nodata *float64) (*Grid, error) {
	if nx <= 0 || ny <= 0 || dx <= 0 || dy <= 0 {
		return nil, eris.Errorf("raster: invalid grid shape %dx%d cell %gx%g", nx, ny, dx, dy)
	}
	if len(vals) != nx*ny {
		return nil, eris.Errorf("raster: grid has %d values, want %d", len(vals), nx*ny)
	}
	return &Grid{minX: minX, maxY: maxY, dx: dx, dy: dy, nx: nx, ny: ny, vals: vals, nodata: nodata}, nil
}

func (g *Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.minX, Y: g.maxY - float64(g.ny)*g.dy},
		Max: geom.Point{X: g.minX + float64(g.nx)*g.dx, Y: g.maxY},
	}
}

func (g *Grid) Resolution() (dx, dy float64) { return g.dx, g.dy }

func (g *Grid) Sample(x, y float64) (float64, bool) {
	col := int((x - g.minX) / g.dx)
	row := int((g.maxY - y) / g.dy)
	if col < 0 || col >= g.nx || row < 0 || row >= g.ny {
		return 0, false
	}
	v := g.vals[row*g.nx+col]
	if g.nodata != nil && v == *g.nodata {
		return 0, false
	}
	return v, true
}

func (g *Grid) Close() error { return nil }
