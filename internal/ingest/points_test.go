package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestParseJSONPoints(t *testing.T) {
	data := []byte(`[
		{"id": "p1", "lat": 1.5, "lon": 2.5, "name": "Depot", "prod": 12.5},
		{"lat": "3,5", "lng": "4,5"},
		{"id": "broken", "lat": 1}
	]`)

	points, err := ParseJSONPoints(data)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "p1", points[0].ID)
	assert.InDelta(t, 1.5, points[0].Lat, 1e-9)
	assert.InDelta(t, 2.5, points[0].Lon, 1e-9)
	assert.Equal(t, "Depot", points[0].Metadata["name"])
	assert.InDelta(t, 12.5, points[0].Production(), 1e-9)

	// Missing id gets a positional default; lng and comma decimals parse.
	assert.Equal(t, "poi_2", points[1].ID)
	assert.InDelta(t, 3.5, points[1].Lat, 1e-9)
	assert.InDelta(t, 4.5, points[1].Lon, 1e-9)
}

func TestParseJSONPointsInvalid(t *testing.T) {
	_, err := ParseJSONPoints([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestParseCSVPoints(t *testing.T) {
	csvData := `id,Latitude,Longitude,prod,region
p1,1.5,2.5,10,north
,3.5,4.5,,south
p3,not-a-number,4.5,,east
`
	points, err := ParseCSVPoints(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "p1", points[0].ID)
	assert.Equal(t, "north", points[0].Metadata["region"])
	assert.Equal(t, "10", points[0].Metadata["prod"])

	assert.Equal(t, "poi_2", points[1].ID)
	assert.InDelta(t, 3.5, points[1].Lat, 1e-9)
	_, hasProd := points[1].Metadata["prod"]
	assert.False(t, hasProd)
}

func TestParseCSVPointsCommaDecimals(t *testing.T) {
	quoted := `id,lat,lon
p1,"38,7","-9,1"
`
	points, err := ParseCSVPoints(strings.NewReader(quoted))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 38.7, points[0].Lat, 1e-9)
	assert.InDelta(t, -9.1, points[0].Lon, 1e-9)
}

func TestParseCSVPointsMissingColumns(t *testing.T) {
	_, err := ParseCSVPoints(strings.NewReader("id,name\np1,depot\n"))
	assert.Error(t, err)
}

func TestParseCSVPointsEmpty(t *testing.T) {
	_, err := ParseCSVPoints(strings.NewReader("id,lat,lon\n"))
	assert.Error(t, err)
}

func TestParseXLSXPoints(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("points")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"id", "lat", "lon", "prod"} {
		header.AddCell().Value = h
	}
	row := sheet.AddRow()
	for _, v := range []string{"p1", "1.5", "2.5", "7"} {
		row.AddCell().Value = v
	}
	row = sheet.AddRow()
	for _, v := range []string{"p2", "bad", "2.5", ""} {
		row.AddCell().Value = v
	}

	path := filepath.Join(t.TempDir(), "points.xlsx")
	require.NoError(t, f.Save(path))

	points, err := ParseXLSXPoints(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "p1", points[0].ID)
	assert.InDelta(t, 7, points[0].Production(), 1e-9)
}

func TestLoadPointsDispatch(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "points.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"p1","lat":1,"lon":2}]`), 0o644))
	points, err := LoadPoints(jsonPath)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	csvPath := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,lat,lon\np1,1,2\n"), 0o644))
	points, err = LoadPoints(csvPath)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	_, err = LoadPoints(filepath.Join(dir, "points.txt"))
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1.5", 1.5, true},
		{"1,5", 1.5, true},
		{" -3 ", -3, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		v, ok := parseNumber(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		if ok {
			assert.InDelta(t, tt.want, v, 1e-9, tt.in)
		}
	}
}
