package ingest

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	gogeom "github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/model"
)

// DBF field names are capped at ten characters, so the shapefile contract
// uses short names. Aliases cover the common longhand spellings.
var shpColumns = map[string][]string{
	"center_id": {"center_id", "center"},
	"band_idx":  {"band_idx", "band_index", "idx"},
	"lower":     {"lower"},
	"upper":     {"upper"},
	"clat":      {"clat", "center_lat"},
	"clon":      {"clon", "center_lon"},
	"maxprod":   {"maxprod", "max_prod"},
}

// ParseShapefileBands reads band polygons from a shapefile. Attribute
// columns follow the same contract as the GeoJSON properties; records with
// missing identity attributes or non-polygon shapes are skipped.
func ParseShapefileBands(path string) ([]model.Center, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(col string) (string, bool) {
		for _, alias := range shpColumns[col] {
			if idx, ok := fieldIdx[alias]; ok {
				v := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
				if v != "" {
					return v, true
				}
			}
		}
		return "", false
	}

	var records []bandRecord
	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()

		centerID, okID := attr("center_id")
		idxStr, okIdx := attr("band_idx")
		upperStr, okUp := attr("upper")
		if !okID || !okIdx || !okUp {
			skipped++
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil {
			skipped++
			continue
		}
		upper, okNum := parseNumber(upperStr)
		if !okNum {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		g, err := PolygonalFromGeom(shpToMultiPolygon(poly))
		if err != nil {
			skipped++
			continue
		}

		rec := bandRecord{
			centerID: centerID,
			index:    index,
			upper:    upper,
			geometry: g,
		}
		if v, ok := attr("lower"); ok {
			rec.lower, _ = parseNumber(v)
		}
		if v, ok := attr("clat"); ok {
			rec.lat, _ = parseNumber(v)
		}
		if v, ok := attr("clon"); ok {
			rec.lon, _ = parseNumber(v)
		}
		if v, ok := attr("maxprod"); ok {
			if mp, okNum := parseNumber(v); okNum {
				rec.maxProd = &mp
			}
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		zap.L().Warn("ingest: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return groupCenters(records)
}

// shpToMultiPolygon converts a shapefile polygon record, which stores all
// parts in one flat point array, into a go-geom multipolygon.
func shpToMultiPolygon(p *shp.Polygon) gogeom.T {
	mp := gogeom.NewMultiPolygon(gogeom.XY)
	if p.NumParts == 0 || len(p.Points) == 0 {
		return mp
	}
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := gogeom.NewLinearRingFlat(gogeom.XY, flat)
		poly := gogeom.NewPolygon(gogeom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("ingest: skipping malformed shapefile ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("ingest: skipping malformed shapefile part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	return mp
}
