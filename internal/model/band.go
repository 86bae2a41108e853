// Package model defines the core data types of the coverage engine: points
// of interest, centers with their isochrone bands, derived intersection
// regions, and the analysis report they roll up into.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ctessum/geom"
)

// BandID identifies a band as the pair (center, band index).
type BandID struct {
	CenterID string `json:"center_id"`
	Index    int    `json:"band_index"`
}

// String returns the canonical form "center:index".
func (b BandID) String() string {
	return fmt.Sprintf("%s:%d", b.CenterID, b.Index)
}

// Less orders band IDs lexicographically by center, then by index.
func (b BandID) Less(o BandID) bool {
	if b.CenterID != o.CenterID {
		return b.CenterID < o.CenterID
	}
	return b.Index < o.Index
}

// SortBandIDs sorts ids in place into canonical order.
func SortBandIDs(ids []BandID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// BandSetKey returns the canonical key for a participant set: the sorted
// band IDs joined by "&". Two sets with the same members always produce the
// same key regardless of the order they were discovered in.
func BandSetKey(ids []BandID) string {
	sorted := make([]BandID, len(ids))
	copy(sorted, ids)
	SortBandIDs(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = id.String()
	}
	return strings.Join(parts, "&")
}

// Band is one concentric ring of a center's isochrone. Lower and Upper are
// travel time or distance bounds (lower < upper). Geometry is a polygon or
// multipolygon in the planar projected CRS shared by all inputs.
type Band struct {
	CenterID string         `json:"center_id"`
	Index    int            `json:"band_index"`
	Lower    float64        `json:"lower"`
	Upper    float64        `json:"upper"`
	Geom     geom.Polygonal `json:"-"`
}

// ID returns the band's identity pair.
func (b Band) ID() BandID {
	return BandID{CenterID: b.CenterID, Index: b.Index}
}

// Label returns a human-readable band label such as "30min" or "1.5h",
// treating Upper as hours.
func (b Band) Label() string {
	return FormatHours(b.Upper)
}

// FormatHours renders an hour value the way band labels are displayed:
// sub-hour values in minutes, whole hours as "Nh", fractions as "N.Nh".
func FormatHours(hours float64) string {
	if hours < 1 {
		return fmt.Sprintf("%gmin", hours*60)
	}
	if hours == float64(int(hours)) {
		return fmt.Sprintf("%dh", int(hours))
	}
	return fmt.Sprintf("%.1fh", hours)
}

// Center is a source location owning an ordered sequence of bands.
// MaxProduction, when set, is the production threshold used to flag band
// viability.
type Center struct {
	ID            string   `json:"id"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	MaxProduction *float64 `json:"max_production,omitempty"`
	Bands         []Band   `json:"bands"`
}
