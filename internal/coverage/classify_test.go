package coverage

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isolysis/isocover/internal/geoindex"
	"github.com/isolysis/isocover/internal/model"
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

func TestContains(t *testing.T) {
	sq := square(0, 0, 10)

	assert.True(t, Contains(geom.Point{X: 5, Y: 5}, sq))
	assert.False(t, Contains(geom.Point{X: 15, Y: 5}, sq))
	// Boundary points count as contained.
	assert.True(t, Contains(geom.Point{X: 10, Y: 5}, sq))
	assert.True(t, Contains(geom.Point{X: 0, Y: 0}, sq))
}

// twoCenters builds a west center with two nested bands and an east center
// with one band overlapping west's.
func twoCenters() []model.Center {
	maxProd := 20.0
	west := model.Center{
		ID:            "west",
		MaxProduction: &maxProd,
		Bands: []model.Band{
			{CenterID: "west", Index: 2, Lower: 0.5, Upper: 1, Geom: square(-5, -5, 20)},
			{CenterID: "west", Index: 1, Lower: 0, Upper: 0.5, Geom: square(0, 0, 10)},
		},
	}
	east := model.Center{
		ID: "east",
		Bands: []model.Band{
			{CenterID: "east", Index: 1, Lower: 0, Upper: 0.5, Geom: square(8, 0, 10)},
		},
	}
	return []model.Center{west, east}
}

func allBands(centers []model.Center) []model.Band {
	var bands []model.Band
	for _, c := range centers {
		bands = append(bands, c.Bands...)
	}
	return bands
}

func TestClassify(t *testing.T) {
	centers := twoCenters()
	points := []model.Point{
		{ID: "p1", Lat: 5, Lon: 5, Metadata: map[string]string{"prod": "10"}},
		{ID: "p2", Lat: 5, Lon: 9, Metadata: map[string]string{"prod": "5"}},
		{ID: "p3", Lat: 5, Lon: 16, Metadata: map[string]string{"prod": "2,5"}},
		{ID: "p4", Lat: 100, Lon: 100},
		{ID: "p5", Lat: 5, Lon: 10}, // on west band 1's edge
	}
	idx := geoindex.New(allBands(centers))

	res := Classify(points, centers, idx)

	assert.Equal(t, 5, res.TotalPoints)
	assert.Equal(t, 4, res.Covered)
	assert.Equal(t, 1, res.Uncovered)
	assert.Equal(t, []string{"p4"}, res.UncoveredIDs)
	assert.Equal(t, res.TotalPoints, res.Covered+res.Uncovered)

	require.Len(t, res.Centers, 2)
	east, west := res.Centers[0], res.Centers[1]
	require.Equal(t, "east", east.CenterID)
	require.Equal(t, "west", west.CenterID)

	// A point in both of west's nested bands counts once for the center.
	assert.Equal(t, 3, west.UniqueCount)
	assert.ElementsMatch(t, []string{"p1", "p2", "p5"}, west.UniquePointIDs)
	assert.Equal(t, 3, east.UniqueCount)
	assert.ElementsMatch(t, []string{"p2", "p3", "p5"}, east.UniquePointIDs)

	// Bands come back ordered by index despite shuffled input.
	require.Len(t, west.Bands, 2)
	assert.Equal(t, 1, west.Bands[0].Band.Index)
	assert.Equal(t, 2, west.Bands[1].Band.Index)

	b1 := west.Bands[0]
	assert.Equal(t, "30min", b1.Label)
	assert.Equal(t, 3, b1.Count)
	assert.InDelta(t, 60, b1.CoveragePct, 1e-9)
	assert.InDelta(t, 15, b1.ProductionSum, 1e-9)
	require.NotNil(t, b1.Viable)
	assert.True(t, *b1.Viable)

	// No production threshold on east, so viability is unset.
	require.Len(t, east.Bands, 1)
	assert.Nil(t, east.Bands[0].Viable)
	assert.InDelta(t, 7.5, east.Bands[0].ProductionSum, 1e-9)

	// Tie between west's bands resolves to the lowest band's label.
	assert.Equal(t, "30min", west.MaxCoverageBand)
	assert.Equal(t, "30min", east.MaxCoverageBand)
}

func TestClassifyBoundaryInclusive(t *testing.T) {
	centers := []model.Center{{
		ID:    "c",
		Bands: []model.Band{{CenterID: "c", Index: 1, Upper: 1, Geom: square(0, 0, 10)}},
	}}
	points := []model.Point{{ID: "edge", Lat: 10, Lon: 10}}
	idx := geoindex.New(allBands(centers))

	res := Classify(points, centers, idx)
	assert.Equal(t, 1, res.Covered)
	assert.Equal(t, 0, res.Uncovered)
}

func TestClassifyNoPoints(t *testing.T) {
	centers := twoCenters()
	idx := geoindex.New(allBands(centers))

	res := Classify(nil, centers, idx)
	assert.Equal(t, 0, res.TotalPoints)
	assert.Equal(t, 0, res.Covered)
	require.Len(t, res.Centers, 2)
	for _, c := range res.Centers {
		for _, b := range c.Bands {
			assert.Zero(t, b.Count)
			assert.Zero(t, b.CoveragePct)
		}
	}
}

func TestClassifyNoCenters(t *testing.T) {
	points := []model.Point{{ID: "p1", Lat: 1, Lon: 1}}
	idx := geoindex.New(nil)

	res := Classify(points, nil, idx)
	assert.Equal(t, 1, res.Uncovered)
	assert.Empty(t, res.Centers)
}
