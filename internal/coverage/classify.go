// Package coverage classifies points of interest against band geometries
// and aggregates per-band, per-center, and global coverage statistics.
package coverage

import (
	"sort"

	"github.com/ctessum/geom"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/geoindex"
	"github.com/isolysis/isocover/internal/model"
)

// Contains reports whether loc lies inside poly, counting points on the
// boundary as contained.
func Contains(loc geom.Point, poly geom.Polygonal) bool {
	return loc.Within(poly) != geom.Outside
}

// Classify determines, for each point, the set of bands containing it.
// Candidates come from the index by bounding box; exact containment is
// applied to each candidate. A point inside several bands of one center
// counts once at the center level. Points inside no band at all are
// recorded as uncovered.
func Classify(points []model.Point, centers []model.Center, idx *geoindex.Index) model.CoverageResult {
	bandPoints := make(map[model.BandID][]string)
	centerSeen := make(map[string]map[string]struct{})
	centerPoints := make(map[string][]string)

	res := model.CoverageResult{TotalPoints: len(points)}

	for _, p := range points {
		loc := p.Loc()
		contained := false
		for _, b := range idx.PointCandidates(loc) {
			if !Contains(loc, b.Geom) {
				continue
			}
			contained = true
			id := b.ID()
			bandPoints[id] = append(bandPoints[id], p.ID)

			seen := centerSeen[b.CenterID]
			if seen == nil {
				seen = make(map[string]struct{})
				centerSeen[b.CenterID] = seen
			}
			if _, dup := seen[p.ID]; !dup {
				seen[p.ID] = struct{}{}
				centerPoints[b.CenterID] = append(centerPoints[b.CenterID], p.ID)
			}
		}
		if contained {
			res.Covered++
		} else {
			res.Uncovered++
			res.UncoveredIDs = append(res.UncoveredIDs, p.ID)
		}
	}

	prod := make(map[string]float64, len(points))
	for _, p := range points {
		prod[p.ID] = p.Production()
	}

	for _, c := range centers {
		cc := model.CenterCoverage{
			CenterID:       c.ID,
			UniquePointIDs: centerPoints[c.ID],
			UniqueCount:    len(centerPoints[c.ID]),
		}

		bands := make([]model.Band, len(c.Bands))
		copy(bands, c.Bands)
		sort.Slice(bands, func(i, j int) bool { return bands[i].Index < bands[j].Index })

		maxCount := -1
		for _, b := range bands {
			ids := bandPoints[b.ID()]
			bc := model.BandCoverage{
				Band:     b.ID(),
				Label:    b.Label(),
				Lower:    b.Lower,
				Upper:    b.Upper,
				Count:    len(ids),
				PointIDs: ids,
			}
			if res.TotalPoints > 0 {
				bc.CoveragePct = float64(len(ids)) / float64(res.TotalPoints) * 100
			}
			for _, id := range ids {
				bc.ProductionSum += prod[id]
			}
			if c.MaxProduction != nil {
				viable := bc.ProductionSum <= *c.MaxProduction
				bc.Viable = &viable
			}
			if bc.Count > maxCount {
				maxCount = bc.Count
				cc.MaxCoverageBand = bc.Label
			}
			cc.Bands = append(cc.Bands, bc)
		}
		res.Centers = append(res.Centers, cc)
	}

	sort.Slice(res.Centers, func(i, j int) bool {
		return res.Centers[i].CenterID < res.Centers[j].CenterID
	})

	zap.L().Debug("coverage: classification complete",
		zap.Int("points", res.TotalPoints),
		zap.Int("covered", res.Covered),
		zap.Int("uncovered", res.Uncovered),
	)
	return res
}
