package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/model"
)

// LoadBands reads centers and their bands from a GeoJSON FeatureCollection
// or a shapefile, dispatching on the file extension.
func LoadBands(path string) ([]model.Center, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".geojson":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		return ParseGeoJSONBands(data)
	case ".shp":
		return ParseShapefileBands(path)
	default:
		return nil, eris.Errorf("ingest: unsupported band file type %q (want .geojson, .json, or .shp)", filepath.Ext(path))
	}
}

// bandRecord is one band feature before grouping into centers.
type bandRecord struct {
	centerID string
	index    int
	lower    float64
	upper    float64
	lat      float64
	lon      float64
	maxProd  *float64
	geometry geom.Polygonal
}

// ParseGeoJSONBands parses a FeatureCollection of band polygons. Each
// feature carries center_id, band_index, lower, and upper properties;
// center_lat, center_lon, and max_production are optional and taken from
// whichever of the center's features supplies them.
func ParseGeoJSONBands(data []byte) ([]model.Center, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "ingest: parse band GeoJSON")
	}

	records := make([]bandRecord, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		centerID, _ := f.Properties["center_id"].(string)
		index, okIdx := numField(f.Properties, "band_index")
		upper, okUp := numField(f.Properties, "upper")
		if centerID == "" || !okIdx || !okUp || f.Geometry == nil {
			skipped++
			continue
		}
		rec := bandRecord{
			centerID: centerID,
			index:    int(index),
			upper:    upper,
		}
		rec.lower, _ = numField(f.Properties, "lower")
		rec.lat, _ = numField(f.Properties, "center_lat")
		rec.lon, _ = numField(f.Properties, "center_lon")
		if mp, ok := numField(f.Properties, "max_production"); ok {
			rec.maxProd = &mp
		}

		g, err := PolygonalFromGeom(f.Geometry)
		if err != nil {
			zap.L().Warn("ingest: skipping band feature with unusable geometry",
				zap.String("center", centerID),
				zap.Int("band", rec.index),
				zap.Error(err),
			)
			skipped++
			continue
		}
		rec.geometry = g
		records = append(records, rec)
	}
	if skipped > 0 {
		zap.L().Warn("ingest: skipped band features missing required properties", zap.Int("skipped", skipped))
	}
	return groupCenters(records)
}

// groupCenters folds band records into centers, one band per (center,
// index). Duplicate indices keep the first occurrence. Centers come back
// sorted by ID and bands by index.
func groupCenters(records []bandRecord) ([]model.Center, error) {
	if len(records) == 0 {
		return nil, eris.New("ingest: no usable band features")
	}

	centers := make(map[string]*model.Center)
	seen := make(map[model.BandID]bool)
	for _, rec := range records {
		c, ok := centers[rec.centerID]
		if !ok {
			c = &model.Center{ID: rec.centerID}
			centers[rec.centerID] = c
		}
		if rec.lat != 0 || rec.lon != 0 {
			c.Lat, c.Lon = rec.lat, rec.lon
		}
		if rec.maxProd != nil && c.MaxProduction == nil {
			c.MaxProduction = rec.maxProd
		}

		id := model.BandID{CenterID: rec.centerID, Index: rec.index}
		if seen[id] {
			zap.L().Warn("ingest: duplicate band, keeping first", zap.String("band", id.String()))
			continue
		}
		seen[id] = true
		c.Bands = append(c.Bands, model.Band{
			CenterID: rec.centerID,
			Index:    rec.index,
			Lower:    rec.lower,
			Upper:    rec.upper,
			Geom:     rec.geometry,
		})
	}

	out := make([]model.Center, 0, len(centers))
	for _, c := range centers {
		sort.Slice(c.Bands, func(i, j int) bool { return c.Bands[i].Index < c.Bands[j].Index })
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
