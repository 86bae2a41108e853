// Package ingest loads points of interest and band geometries from the
// file formats the excluded upload/provider layers emit: JSON, CSV, and
// XLSX for points; GeoJSON and shapefiles for bands.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/model"
)

// LoadPoints reads points from a JSON, CSV, or XLSX file, dispatching on
// the file extension.
func LoadPoints(path string) ([]model.Point, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		return ParseJSONPoints(data)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer func() { _ = f.Close() }()
		return ParseCSVPoints(f)
	case ".xlsx", ".xls":
		return ParseXLSXPoints(path)
	default:
		return nil, eris.Errorf("ingest: unsupported point file type %q (want .json, .csv, or .xlsx)", filepath.Ext(path))
	}
}

// ParseJSONPoints parses a JSON array of point objects. Each object needs
// "lat" and "lon" ("lng" is accepted as an alias); "id" is defaulted when
// absent; all other scalar fields are folded into metadata.
func ParseJSONPoints(data []byte) ([]model.Point, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "ingest: parse JSON points")
	}

	points := make([]model.Point, 0, len(raw))
	skipped := 0
	for i, item := range raw {
		lat, okLat := numField(item, "lat")
		lon, okLon := numField(item, "lon")
		if !okLon {
			lon, okLon = numField(item, "lng")
		}
		if !okLat || !okLon {
			skipped++
			continue
		}
		p := model.Point{Lat: lat, Lon: lon}
		if id, ok := item["id"].(string); ok && id != "" {
			p.ID = id
		} else {
			p.ID = fmt.Sprintf("poi_%d", i+1)
		}
		for k, v := range item {
			switch k {
			case "id", "lat", "lon", "lng":
				continue
			}
			if s := scalarString(v); s != "" {
				if p.Metadata == nil {
					p.Metadata = make(map[string]string)
				}
				p.Metadata[strings.ToLower(k)] = s
			}
		}
		points = append(points, p)
	}
	if skipped > 0 {
		zap.L().Warn("ingest: skipped JSON points without coordinates", zap.Int("skipped", skipped))
	}
	return points, nil
}

// ParseCSVPoints parses header-mapped CSV rows. Latitude and longitude
// columns are matched case-insensitively against common spellings; rows
// with unparseable coordinates are dropped with a warning. Comma decimal
// separators are tolerated.
func ParseCSVPoints(r io.Reader) ([]model.Point, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read CSV points")
	}
	if len(records) < 2 {
		return nil, eris.New("ingest: CSV has no data rows")
	}
	return pointsFromTable(records[0], records[1:])
}

// ParseXLSXPoints parses points from the first sheet of an XLSX file using
// the same column contract as CSV.
func ParseXLSXPoints(path string) ([]model.Point, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open XLSX %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: XLSX %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.Errorf("ingest: XLSX %s has no data rows", path)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return pointsFromTable(rows[0], rows[1:])
}

var (
	latColumns = map[string]bool{"lat": true, "latitude": true, "latitud": true}
	lonColumns = map[string]bool{"lon": true, "lng": true, "longitude": true, "longitud": true}
)

func pointsFromTable(header []string, rows [][]string) ([]model.Point, error) {
	latIdx, lonIdx, idIdx := -1, -1, -1
	meta := make(map[int]string)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case latColumns[name]:
			latIdx = i
		case lonColumns[name]:
			lonIdx = i
		case name == "id":
			idIdx = i
		case name != "":
			meta[i] = name
		}
	}
	if latIdx < 0 || lonIdx < 0 {
		return nil, eris.New("ingest: table is missing latitude/longitude columns")
	}

	points := make([]model.Point, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		lat, okLat := parseNumber(cellAt(row, latIdx))
		lon, okLon := parseNumber(cellAt(row, lonIdx))
		if !okLat || !okLon {
			skipped++
			continue
		}
		p := model.Point{Lat: lat, Lon: lon}
		if idIdx >= 0 {
			p.ID = strings.TrimSpace(cellAt(row, idIdx))
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("poi_%d", i+1)
		}
		for col, name := range meta {
			if v := strings.TrimSpace(cellAt(row, col)); v != "" {
				if p.Metadata == nil {
					p.Metadata = make(map[string]string)
				}
				p.Metadata[name] = v
			}
		}
		points = append(points, p)
	}
	if skipped > 0 {
		zap.L().Warn("ingest: skipped table rows without valid coordinates", zap.Int("skipped", skipped))
	}
	return points, nil
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseNumber parses a float, accepting a comma decimal separator.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func numField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		return parseNumber(v)
	default:
		return 0, false
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
