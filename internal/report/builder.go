// Package report assembles classifier, enumerator, and aggregator outputs
// into the final analysis report. It performs no geometry work; its one job
// beyond bookkeeping is a stable, deterministic ordering so identical
// inputs produce byte-identical output ordering.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/model"
)

// BuildInput carries everything the builder assembles.
type BuildInput struct {
	Coverage     model.CoverageResult
	Regions      []model.IntersectionRegion
	Truncated    bool
	Stats        map[string][]model.ZonalStats
	RasterErrors map[string]string
	TotalCenters int
	TotalBands   int
}

// Build assembles the report. Regions are ordered by ascending arity, then
// by canonical participant-set key; zonal stats lists are ordered by raster
// ID.
func Build(in BuildInput) *model.AnalysisReport {
	rep := &model.AnalysisReport{
		RunID:        uuid.New().String(),
		GeneratedAt:  time.Now().UTC(),
		TotalPoints:  in.Coverage.TotalPoints,
		TotalCenters: in.TotalCenters,
		TotalBands:   in.TotalBands,
		Coverage:     in.Coverage,
		Regions:      in.Regions,
		TotalRegions: len(in.Regions),
		Truncated:    in.Truncated,
		Stats:        in.Stats,
		RasterErrors: in.RasterErrors,
	}

	sort.Slice(rep.Regions, func(i, j int) bool {
		if rep.Regions[i].Arity() != rep.Regions[j].Arity() {
			return rep.Regions[i].Arity() < rep.Regions[j].Arity()
		}
		return rep.Regions[i].Key() < rep.Regions[j].Key()
	})
	for _, ss := range rep.Stats {
		sort.Slice(ss, func(i, j int) bool { return ss[i].RasterID < ss[j].RasterID })
	}

	for _, r := range rep.Regions {
		if r.Arity() > rep.MaxOverlapCount {
			rep.MaxOverlapCount = r.Arity()
		}
		rep.TotalIntersectionAreaKm2 += r.AreaKm2
	}

	if rep.TotalPoints > 0 {
		rep.GlobalCoveragePct = float64(in.Coverage.Covered) / float64(rep.TotalPoints) * 100
		noi := networkOptimizationIndex(in.Coverage)
		rep.NetworkOptimizationIndex = &noi
	}
	rep.MostCoveredCenter = mostCoveredCenter(in.Coverage.Centers)

	zap.L().Debug("report: assembled",
		zap.String("run_id", rep.RunID),
		zap.Int("regions", rep.TotalRegions),
		zap.Bool("truncated", rep.Truncated),
	)
	return rep
}

// networkOptimizationIndex is (covered - uncovered - redundant) / total,
// where redundant counts points served by bands of two or more distinct
// centers.
func networkOptimizationIndex(cov model.CoverageResult) float64 {
	centersPerPoint := make(map[string]int)
	for _, c := range cov.Centers {
		for _, id := range c.UniquePointIDs {
			centersPerPoint[id]++
		}
	}
	redundant := 0
	for _, n := range centersPerPoint {
		if n >= 2 {
			redundant++
		}
	}
	return float64(cov.Covered-cov.Uncovered-redundant) / float64(cov.TotalPoints)
}

// mostCoveredCenter returns the center with the highest unique point count;
// ties break toward the lexicographically smaller center ID. Empty when no
// center covers anything.
func mostCoveredCenter(centers []model.CenterCoverage) string {
	best := ""
	bestCount := 0
	for _, c := range centers {
		if c.UniqueCount > bestCount || (c.UniqueCount == bestCount && bestCount > 0 && c.CenterID < best) {
			best = c.CenterID
			bestCount = c.UniqueCount
		}
	}
	return best
}
