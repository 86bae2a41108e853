package engine

import (
	"context"
	"testing"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isolysis/isocover/internal/model"
	"github.com/isolysis/isocover/internal/raster"
)

func square(minX, minY, side float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY},
		{X: minX + side, Y: minY},
		{X: minX + side, Y: minY + side},
		{X: minX, Y: minY + side},
		{X: minX, Y: minY},
	}}
}

// testInput has two single-band centers overlapping on (2,0)-(4,4) and
// three points: one in each band alone and one in the overlap.
func testInput() Input {
	return Input{
		Points: []model.Point{
			{ID: "left", Lat: 2, Lon: 1},
			{ID: "shared", Lat: 2, Lon: 3},
			{ID: "right", Lat: 2, Lon: 5},
		},
		Centers: []model.Center{
			{ID: "a", Bands: []model.Band{{CenterID: "a", Index: 1, Upper: 0.5, Geom: square(0, 0, 4)}}},
			{ID: "b", Bands: []model.Band{{CenterID: "b", Index: 1, Upper: 0.5, Geom: square(2, 0, 4)}}},
		},
	}
}

// gridOpener serves the same 4x4 grid, values 1..16 over (0,0)-(4,4), for
// every descriptor.
func gridOpener(t *testing.T) raster.Opener {
	t.Helper()
	return func(d raster.Descriptor) (raster.Handle, error) {
		vals := make([]float64, 16)
		for i := range vals {
			vals[i] = float64(i + 1)
		}
		g, err := raster.NewGrid(0, 4, 1, 1, 4, 4, vals, nil)
		require.NoError(t, err)
		return g, nil
	}
}

func TestRunEmptyInput(t *testing.T) {
	rep, err := Run(context.Background(), Input{}, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Zero(t, rep.TotalPoints)
	assert.Zero(t, rep.TotalRegions)
	assert.False(t, rep.Truncated)
	assert.Nil(t, rep.NetworkOptimizationIndex)
}

func TestRun(t *testing.T) {
	rep, err := Run(context.Background(), testInput(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.TotalPoints)
	assert.Equal(t, 2, rep.TotalCenters)
	assert.Equal(t, 2, rep.TotalBands)
	assert.Equal(t, 3, rep.Coverage.Covered)
	assert.Equal(t, 0, rep.Coverage.Uncovered)
	assert.InDelta(t, 100, rep.GlobalCoveragePct, 1e-9)

	require.Len(t, rep.Regions, 1)
	reg := rep.Regions[0]
	assert.Equal(t, "a:1&b:1", reg.Key())
	assert.Equal(t, []string{"shared"}, reg.PointIDs)
	assert.InDelta(t, 8.0/1e6, reg.AreaKm2, 1e-12)
	assert.Equal(t, 2, rep.MaxOverlapCount)

	// "shared" sits in both centers, so NOI is (3 - 0 - 1) / 3.
	require.NotNil(t, rep.NetworkOptimizationIndex)
	assert.InDelta(t, 2.0/3.0, *rep.NetworkOptimizationIndex, 1e-9)
}

func TestRunWithRaster(t *testing.T) {
	in := testInput()
	in.Rasters = []raster.Descriptor{{ID: "pop", Path: "ignored.tif"}}

	rep, err := Run(context.Background(), in, Options{RasterOpener: gridOpener(t)})
	require.NoError(t, err)

	assert.Empty(t, rep.RasterErrors)

	bandStats := rep.Stats[model.BandRef(model.BandID{CenterID: "a", Index: 1})]
	require.Len(t, bandStats, 1)
	assert.Equal(t, "pop", bandStats[0].RasterID)
	assert.Equal(t, 16, bandStats[0].Count)
	assert.InDelta(t, 136, bandStats[0].Sum, 1e-9)
	assert.False(t, bandStats[0].Unavailable)

	// Overlap region (2,0)-(4,4): the grid's right half.
	regionStats := rep.Stats[model.RegionRef("a:1&b:1")]
	require.Len(t, regionStats, 1)
	assert.Equal(t, 8, regionStats[0].Count)
	assert.InDelta(t, 3+4+7+8+11+12+15+16, regionStats[0].Sum, 1e-9)
}

func TestRunRasterFailure(t *testing.T) {
	in := testInput()
	in.Rasters = []raster.Descriptor{{ID: "bad", Path: "missing.tif"}}

	rep, err := Run(context.Background(), in, Options{
		RasterOpener: func(d raster.Descriptor) (raster.Handle, error) {
			return nil, eris.New("no such file")
		},
	})
	require.NoError(t, err)

	// The run degrades instead of failing: the error is reported and every
	// geometry gets unavailable stats.
	assert.Contains(t, rep.RasterErrors["bad"], "no such file")
	for ref, stats := range rep.Stats {
		require.Len(t, stats, 1, ref)
		assert.True(t, stats[0].Unavailable, ref)
	}
	assert.Contains(t, rep.Stats, model.RegionRef("a:1&b:1"))
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testInput(), Options{})
	assert.Error(t, err)
}

func TestInputHashDeterministic(t *testing.T) {
	h1, err := InputHash(testInput(), Options{MaxArity: 3})
	require.NoError(t, err)
	h2, err := InputHash(testInput(), Options{MaxArity: 3})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestInputHashSensitivity(t *testing.T) {
	base, err := InputHash(testInput(), Options{MaxArity: 3})
	require.NoError(t, err)

	optsChanged, err := InputHash(testInput(), Options{MaxArity: 4})
	require.NoError(t, err)
	assert.NotEqual(t, base, optsChanged)

	in := testInput()
	in.Points[0].Lat += 0.001
	pointMoved, err := InputHash(in, Options{MaxArity: 3})
	require.NoError(t, err)
	assert.NotEqual(t, base, pointMoved)

	in = testInput()
	in.Centers[0].Bands[0].Geom = square(0, 0, 5)
	geomChanged, err := InputHash(in, Options{MaxArity: 3})
	require.NoError(t, err)
	assert.NotEqual(t, base, geomChanged)

	in = testInput()
	in.Rasters = []raster.Descriptor{{ID: "pop", Path: "pop.tif"}}
	rasterAdded, err := InputHash(in, Options{MaxArity: 3})
	require.NoError(t, err)
	assert.NotEqual(t, base, rasterAdded)
}
