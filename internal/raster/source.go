// Package raster provides read-only access to gridded raster sources and
// zonal aggregation of raster values over polygon geometries. Each source
// is opened at most once per analysis run and the open handle is shared by
// every query against it.
package raster

import "github.com/ctessum/geom"

// Descriptor names a raster source. NoData, when set, overrides the nodata
// value declared by the file itself.
type Descriptor struct {
	ID     string   `yaml:"id" json:"id" mapstructure:"id"`
	Path   string   `yaml:"path" json:"path" mapstructure:"path"`
	NoData *float64 `yaml:"nodata,omitempty" json:"nodata,omitempty" mapstructure:"nodata"`
}

// Handle is an open raster source. Implementations must be safe for
// concurrent Sample calls.
type Handle interface {
	// Bounds returns the georeferenced extent of the raster.
	Bounds() *geom.Bounds
	// Resolution returns the cell size in CRS units.
	Resolution() (dx, dy float64)
	// Sample returns the value of the cell containing (x, y). ok is false
	// outside the raster extent and for nodata cells.
	Sample(x, y float64) (v float64, ok bool)
	// Close releases the handle.
	Close() error
}
