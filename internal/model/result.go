package model

import (
	"time"

	"github.com/ctessum/geom"
)

// IntersectionRegion is the non-empty overlap of two or more bands.
// Bands are stored in canonical sorted order; two regions with the same
// participant set are the same region.
type IntersectionRegion struct {
	Bands    []BandID       `json:"bands"`
	Geom     geom.Polygonal `json:"-"`
	PointIDs []string       `json:"point_ids"`
	AreaKm2  float64        `json:"area_km2"`
}

// Arity is the number of participating bands.
func (r IntersectionRegion) Arity() int {
	return len(r.Bands)
}

// Key returns the canonical participant-set key.
func (r IntersectionRegion) Key() string {
	return BandSetKey(r.Bands)
}

// BandCoverage is the classification result for one band.
type BandCoverage struct {
	Band          BandID   `json:"band"`
	Label         string   `json:"label"`
	Lower         float64  `json:"lower"`
	Upper         float64  `json:"upper"`
	Count         int      `json:"count"`
	PointIDs      []string `json:"point_ids"`
	CoveragePct   float64  `json:"coverage_pct"`
	ProductionSum float64  `json:"production_sum"`
	Viable        *bool    `json:"viable,omitempty"`
}

// CenterCoverage aggregates a center's bands. UniquePointIDs holds each
// point at most once even when same-center bands overlap.
type CenterCoverage struct {
	CenterID        string         `json:"center_id"`
	Bands           []BandCoverage `json:"bands"`
	UniquePointIDs  []string       `json:"unique_point_ids"`
	UniqueCount     int            `json:"unique_count"`
	MaxCoverageBand string         `json:"max_coverage_band,omitempty"`
}

// CoverageResult is the classifier output. Covered + Uncovered always
// equals TotalPoints.
type CoverageResult struct {
	TotalPoints  int              `json:"total_points"`
	Covered      int              `json:"covered"`
	Uncovered    int              `json:"uncovered"`
	UncoveredIDs []string         `json:"uncovered_ids"`
	Centers      []CenterCoverage `json:"centers"`
}

// ZonalStats holds raster aggregates over one geometry. Unavailable marks
// stats whose raster source failed to open; the numeric fields are then
// meaningless.
type ZonalStats struct {
	GeometryRef string  `json:"geometry_ref"`
	RasterID    string  `json:"raster_id"`
	Count       int     `json:"count"`
	Sum         float64 `json:"sum"`
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	AreaKm2     float64 `json:"area_km2"`
	Unavailable bool    `json:"unavailable,omitempty"`
}

// BandRef is the geometry reference key for a band's zonal stats.
func BandRef(id BandID) string {
	return "band:" + id.String()
}

// RegionRef is the geometry reference key for an intersection region's
// zonal stats.
func RegionRef(key string) string {
	return "region:" + key
}

// AnalysisReport is the complete result of one analysis run.
type AnalysisReport struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalPoints  int `json:"total_points"`
	TotalCenters int `json:"total_centers"`
	TotalBands   int `json:"total_bands"`

	Coverage CoverageResult `json:"coverage"`

	Regions                  []IntersectionRegion `json:"regions"`
	TotalRegions             int                  `json:"total_regions"`
	MaxOverlapCount          int                  `json:"max_overlap_count"`
	TotalIntersectionAreaKm2 float64              `json:"total_intersection_area_km2"`
	Truncated                bool                 `json:"truncated"`

	Stats        map[string][]ZonalStats `json:"zonal_stats,omitempty"`
	RasterErrors map[string]string       `json:"raster_errors,omitempty"`

	GlobalCoveragePct        float64  `json:"global_coverage_pct"`
	MostCoveredCenter        string   `json:"most_covered_center,omitempty"`
	NetworkOptimizationIndex *float64 `json:"network_optimization_index,omitempty"`
}
