package model

import (
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

// Point is a point of interest. Lat and Lon must be expressed in the same
// planar CRS as the band geometries (Lon maps to X, Lat to Y). Points are
// immutable once ingested.
type Point struct {
	ID       string            `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Loc returns the point's planar location.
func (p Point) Loc() geom.Point {
	return geom.Point{X: p.Lon, Y: p.Lat}
}

// Production returns the point's production value from the "prod" metadata
// field, or zero when absent or unparseable. Comma decimal separators are
// tolerated, matching upstream data files.
func (p Point) Production() float64 {
	raw, ok := p.Metadata["prod"]
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}
