package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/isolysis/isocover/internal/model"
)

// hashableBand mirrors a band with its geometry flattened to coordinate
// rings, since band geometries are excluded from normal JSON output.
type hashableBand struct {
	ID       model.BandID  `json:"id"`
	Lower    float64       `json:"lower"`
	Upper    float64       `json:"upper"`
	Polygons [][][]float64 `json:"polygons"`
}

type hashableInput struct {
	Points  []model.Point  `json:"points"`
	Centers []model.Center `json:"centers"`
	Bands   []hashableBand `json:"bands"`
	Rasters any            `json:"rasters"`
	Options Options        `json:"options"`
}

// InputHash returns a deterministic content hash of an analysis input and
// its options, suitable as a report cache key: identical inputs always
// hash identically, and any change to points, band geometry, raster
// descriptors, or options changes the hash.
func InputHash(in Input, opts Options) (string, error) {
	h := hashableInput{
		Points:  in.Points,
		Centers: in.Centers,
		Rasters: in.Rasters,
		Options: opts,
	}
	for _, c := range in.Centers {
		for _, b := range c.Bands {
			hb := hashableBand{ID: b.ID(), Lower: b.Lower, Upper: b.Upper}
			if b.Geom != nil {
				for _, poly := range b.Geom.Polygons() {
					for _, ring := range poly {
						coords := make([][]float64, len(ring))
						for i, pt := range ring {
							coords[i] = []float64{pt.X, pt.Y}
						}
						hb.Polygons = append(hb.Polygons, coords)
					}
				}
			}
			h.Bands = append(h.Bands, hb)
		}
	}
	sort.Slice(h.Bands, func(i, j int) bool { return h.Bands[i].ID.Less(h.Bands[j].ID) })

	data, err := json.Marshal(h)
	if err != nil {
		return "", eris.Wrap(err, "engine: marshal input for hashing")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
