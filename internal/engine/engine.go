// Package engine composes the index, classifier, enumerator, aggregator,
// and report builder into a single pure function of
// (points, centers, rasters, options) -> AnalysisReport.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/coverage"
	"github.com/isolysis/isocover/internal/geoindex"
	"github.com/isolysis/isocover/internal/model"
	"github.com/isolysis/isocover/internal/overlap"
	"github.com/isolysis/isocover/internal/raster"
	"github.com/isolysis/isocover/internal/report"
)

// Input is the immutable input of one analysis run.
type Input struct {
	Points  []model.Point       `json:"points"`
	Centers []model.Center      `json:"centers"`
	Rasters []raster.Descriptor `json:"rasters,omitempty"`
}

// Options bounds one analysis run.
type Options struct {
	MaxArity   int `json:"max_arity"`
	MaxRegions int `json:"max_regions"`
	Workers    int `json:"workers"`

	// RasterOpener overrides the default GeoTIFF opener, letting callers
	// aggregate against synthetic grids. Not part of the input identity.
	RasterOpener raster.Opener `json:"-"`
}

// Run executes one full analysis. Empty inputs yield a trivial report.
// Invalid band geometries and unopenable rasters degrade the report
// (warnings, unavailable stats) without failing the run; the only error
// path is context cancellation.
func Run(ctx context.Context, in Input, opts Options) (*model.AnalysisReport, error) {
	bands := make([]model.Band, 0)
	for _, c := range in.Centers {
		bands = append(bands, c.Bands...)
	}
	zap.L().Info("engine: starting analysis",
		zap.Int("points", len(in.Points)),
		zap.Int("centers", len(in.Centers)),
		zap.Int("bands", len(bands)),
		zap.Int("rasters", len(in.Rasters)),
	)

	idx := geoindex.New(bands)
	pidx := geoindex.NewPointIndex(in.Points)

	cov := coverage.Classify(in.Points, in.Centers, idx)

	regions, truncated, err := overlap.Enumerate(ctx, bands, idx, pidx, overlap.Options{
		MaxArity:   opts.MaxArity,
		MaxRegions: opts.MaxRegions,
		Workers:    opts.Workers,
	})
	if err != nil {
		return nil, eris.Wrap(err, "engine: enumerate intersections")
	}

	var stats map[string][]model.ZonalStats
	var rasterErrs map[string]string
	if len(in.Rasters) > 0 {
		stats, rasterErrs, err = aggregateAll(ctx, in, opts, bands, regions)
		if err != nil {
			return nil, err
		}
	}

	return report.Build(report.BuildInput{
		Coverage:     cov,
		Regions:      regions,
		Truncated:    truncated,
		Stats:        stats,
		RasterErrors: rasterErrs,
		TotalCenters: len(in.Centers),
		TotalBands:   len(bands),
	}), nil
}

// aggregateAll computes zonal stats for every band and region against every
// raster source. A source that fails to open contributes Unavailable stats
// for all geometries and an entry in the error map; it never aborts the run.
func aggregateAll(ctx context.Context, in Input, opts Options, bands []model.Band, regions []model.IntersectionRegion) (map[string][]model.ZonalStats, map[string]string, error) {
	var popts []raster.PoolOption
	if opts.RasterOpener != nil {
		popts = append(popts, raster.WithOpener(opts.RasterOpener))
	}
	pool := raster.NewPool(popts...)
	defer func() { _ = pool.Close() }()

	stats := make(map[string][]model.ZonalStats)
	rasterErrs := make(map[string]string)

	for _, d := range in.Rasters {
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrapf(err, "engine: canceled before raster %q", d.ID)
		}
		h, err := pool.Acquire(d)
		if err != nil {
			rasterErrs[d.ID] = eris.ToString(err, false)
		}
		for _, b := range bands {
			if b.Geom == nil || b.Geom.Area() <= 0 {
				continue
			}
			ref := model.BandRef(b.ID())
			if h == nil {
				stats[ref] = append(stats[ref], raster.Unavailable(ref, d.ID, b.Geom))
				continue
			}
			stats[ref] = append(stats[ref], raster.Aggregate(ref, d.ID, b.Geom, h))
		}
		for _, r := range regions {
			ref := model.RegionRef(r.Key())
			if h == nil {
				stats[ref] = append(stats[ref], raster.Unavailable(ref, d.ID, r.Geom))
				continue
			}
			stats[ref] = append(stats[ref], raster.Aggregate(ref, d.ID, r.Geom, h))
		}
	}
	return stats, rasterErrs, nil
}
