package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isolysis/isocover/internal/model"
)

func bandID(center string, idx int) model.BandID {
	return model.BandID{CenterID: center, Index: idx}
}

func TestBuildOrdersRegions(t *testing.T) {
	in := BuildInput{
		Regions: []model.IntersectionRegion{
			{Bands: []model.BandID{bandID("a", 1), bandID("b", 1), bandID("c", 1)}, AreaKm2: 1},
			{Bands: []model.BandID{bandID("b", 1), bandID("c", 1)}, AreaKm2: 2},
			{Bands: []model.BandID{bandID("a", 1), bandID("b", 1)}, AreaKm2: 3},
		},
	}
	rep := Build(in)

	keys := make([]string, len(rep.Regions))
	for i, r := range rep.Regions {
		keys[i] = r.Key()
	}
	assert.Equal(t, []string{"a:1&b:1", "b:1&c:1", "a:1&b:1&c:1"}, keys)
	assert.Equal(t, 3, rep.TotalRegions)
	assert.Equal(t, 3, rep.MaxOverlapCount)
	assert.InDelta(t, 6, rep.TotalIntersectionAreaKm2, 1e-9)
}

func TestBuildIdentity(t *testing.T) {
	first := Build(BuildInput{})
	second := Build(BuildInput{})

	assert.NotEmpty(t, first.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.False(t, first.GeneratedAt.IsZero())
	assert.Equal(t, "UTC", first.GeneratedAt.Location().String())
}

func TestBuildCoverageDerivatives(t *testing.T) {
	in := BuildInput{
		Coverage: model.CoverageResult{
			TotalPoints: 10,
			Covered:     8,
			Uncovered:   2,
			Centers: []model.CenterCoverage{
				{CenterID: "west", UniquePointIDs: []string{"p1", "p2", "p3"}, UniqueCount: 3},
				{CenterID: "east", UniquePointIDs: []string{"p2", "p4"}, UniqueCount: 2},
			},
		},
		TotalCenters: 2,
		TotalBands:   3,
	}
	rep := Build(in)

	assert.InDelta(t, 80, rep.GlobalCoveragePct, 1e-9)
	assert.Equal(t, "west", rep.MostCoveredCenter)
	// One point (p2) is served by two centers: (8 - 2 - 1) / 10.
	require.NotNil(t, rep.NetworkOptimizationIndex)
	assert.InDelta(t, 0.5, *rep.NetworkOptimizationIndex, 1e-9)
}

func TestBuildMostCoveredTieBreak(t *testing.T) {
	rep := Build(BuildInput{
		Coverage: model.CoverageResult{
			TotalPoints: 4,
			Covered:     4,
			Centers: []model.CenterCoverage{
				{CenterID: "zeta", UniquePointIDs: []string{"p1", "p2"}, UniqueCount: 2},
				{CenterID: "alpha", UniquePointIDs: []string{"p3", "p4"}, UniqueCount: 2},
			},
		},
	})
	assert.Equal(t, "alpha", rep.MostCoveredCenter)
}

func TestBuildEmptyInput(t *testing.T) {
	rep := Build(BuildInput{})

	assert.Zero(t, rep.TotalPoints)
	assert.Zero(t, rep.GlobalCoveragePct)
	assert.Nil(t, rep.NetworkOptimizationIndex)
	assert.Empty(t, rep.MostCoveredCenter)
	assert.Empty(t, rep.Regions)
}

func TestBuildNoCoveredPoints(t *testing.T) {
	rep := Build(BuildInput{
		Coverage: model.CoverageResult{
			TotalPoints: 3,
			Uncovered:   3,
			Centers:     []model.CenterCoverage{{CenterID: "c", UniqueCount: 0}},
		},
	})

	assert.Zero(t, rep.GlobalCoveragePct)
	require.NotNil(t, rep.NetworkOptimizationIndex)
	assert.InDelta(t, -1, *rep.NetworkOptimizationIndex, 1e-9)
	assert.Empty(t, rep.MostCoveredCenter)
}

func TestBuildSortsStats(t *testing.T) {
	ref := model.BandRef(bandID("a", 1))
	rep := Build(BuildInput{
		Stats: map[string][]model.ZonalStats{
			ref: {
				{GeometryRef: ref, RasterID: "slope"},
				{GeometryRef: ref, RasterID: "pop"},
			},
		},
	})

	require.Len(t, rep.Stats[ref], 2)
	assert.Equal(t, "pop", rep.Stats[ref][0].RasterID)
	assert.Equal(t, "slope", rep.Stats[ref][1].RasterID)
}

func TestBuildPassesTruncation(t *testing.T) {
	rep := Build(BuildInput{Truncated: true, RasterErrors: map[string]string{"pop": "open failed"}})
	assert.True(t, rep.Truncated)
	assert.Equal(t, "open failed", rep.RasterErrors["pop"])
}
