// Package overlap discovers all non-empty intersections among bands up to a
// configured arity. Instead of testing every r-combination, it grows
// intersections levelwise: only regions that survived at arity r-1 are
// extended to arity r, and a branch dies permanently the moment its
// geometry becomes empty.
package overlap

import (
	"context"
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/isolysis/isocover/internal/coverage"
	"github.com/isolysis/isocover/internal/geoindex"
	"github.com/isolysis/isocover/internal/model"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultMaxArity   = 3
	DefaultMaxRegions = 100
	DefaultWorkers    = 4
)

// Options bounds the enumeration.
type Options struct {
	// MaxArity is the largest participant-set size to attempt.
	MaxArity int
	// MaxRegions is a hard cap on discovered regions; hitting it sets the
	// truncation flag.
	MaxRegions int
	// Workers is the number of goroutines extending frontier branches.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.MaxArity <= 0 {
		o.MaxArity = DefaultMaxArity
	}
	if o.MaxRegions <= 0 {
		o.MaxRegions = DefaultMaxRegions
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// frontierRegion is one surviving branch: a canonical ascending participant
// set and its (non-empty) intersection geometry. maxRank is the rank of the
// highest member; branches only extend by higher-ranked bands, so a
// participant set is built in exactly one order.
type frontierRegion struct {
	ids     []model.BandID
	maxRank int
	g       geom.Polygonal
}

// Enumerate returns every non-empty intersection region of arity 2 up to
// opts.MaxArity, in deterministic (arity, canonical key) order, along with
// a flag reporting whether the region cap truncated the result.
//
// Each region's point set is populated from the point index using the same
// boundary-inclusive containment rule as the coverage classifier. Region
// survival itself is strict: a zero-area sliver is treated as empty.
func Enumerate(ctx context.Context, bands []model.Band, idx *geoindex.Index, points *geoindex.PointIndex, opts Options) ([]model.IntersectionRegion, bool, error) {
	opts = opts.withDefaults()

	valid := make([]model.Band, 0, len(bands))
	for _, b := range bands {
		if b.Geom != nil && b.Geom.Area() > 0 {
			valid = append(valid, b)
		}
	}
	if len(valid) < 2 || opts.MaxArity < 2 {
		return nil, false, nil
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].ID().Less(valid[j].ID()) })
	rank := make(map[model.BandID]int, len(valid))
	for i, b := range valid {
		rank[b.ID()] = i
	}

	// Level 1 frontier: each band alone, extendable only by higher-ranked
	// bands. The first extension pass produces exactly the surviving pairs.
	frontier := make([]frontierRegion, len(valid))
	for i, b := range valid {
		frontier[i] = frontierRegion{ids: []model.BandID{b.ID()}, maxRank: i, g: b.Geom}
	}

	var accum []frontierRegion
	seen := make(map[string]struct{})
	truncated := false

	for level := 2; level <= opts.MaxArity && len(frontier) > 0 && !truncated; level++ {
		if err := ctx.Err(); err != nil {
			return nil, false, eris.Wrapf(err, "overlap: enumeration canceled at level %d", level)
		}

		found, err := extendAll(ctx, frontier, rank, idx, opts.Workers)
		if err != nil {
			return nil, false, eris.Wrapf(err, "overlap: extend level %d", level)
		}

		// Commit survivors sequentially in canonical order so the set kept
		// under the cap is identical across runs regardless of scheduling.
		sort.Slice(found, func(i, j int) bool {
			return model.BandSetKey(found[i].ids) < model.BandSetKey(found[j].ids)
		})
		var next []frontierRegion
		for _, f := range found {
			key := model.BandSetKey(f.ids)
			if _, dup := seen[key]; dup {
				continue
			}
			if len(accum) >= opts.MaxRegions {
				truncated = true
				break
			}
			seen[key] = struct{}{}
			accum = append(accum, f)
			next = append(next, f)
		}
		zap.L().Debug("overlap: level complete",
			zap.Int("level", level),
			zap.Int("surviving", len(next)),
			zap.Int("total", len(accum)),
			zap.Bool("truncated", truncated),
		)
		frontier = next
	}

	regions := make([]model.IntersectionRegion, 0, len(accum))
	for _, f := range accum {
		reg := model.IntersectionRegion{
			Bands:   f.ids,
			Geom:    f.g,
			AreaKm2: f.g.Area() / 1e6,
		}
		for _, p := range points.Candidates(f.g.Bounds()) {
			if coverage.Contains(p.Loc(), f.g) {
				reg.PointIDs = append(reg.PointIDs, p.ID)
			}
		}
		sort.Strings(reg.PointIDs)
		regions = append(regions, reg)
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Arity() != regions[j].Arity() {
			return regions[i].Arity() < regions[j].Arity()
		}
		return regions[i].Key() < regions[j].Key()
	})

	zap.L().Info("overlap: enumeration complete",
		zap.Int("bands", len(valid)),
		zap.Int("regions", len(regions)),
		zap.Bool("truncated", truncated),
	)
	return regions, truncated, nil
}

// extendAll attempts every single-band extension of every frontier branch.
// Branches are independent; they share only the read-only index and band
// data, so each runs on its own goroutine under the worker limit.
func extendAll(ctx context.Context, frontier []frontierRegion, rank map[model.BandID]int, idx *geoindex.Index, workers int) ([]frontierRegion, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	var out []frontierRegion

	for _, fr := range frontier {
		fr := fr
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var local []frontierRegion
			for _, cand := range idx.Candidates(fr.g.Bounds()) {
				r, ok := rank[cand.ID()]
				if !ok || r <= fr.maxRank {
					continue
				}
				inter := fr.g.Intersection(cand.Geom)
				if inter == nil || inter.Area() <= 0 {
					// Empty or sliver: this branch is dead, and by
					// monotonicity no superset can revive it.
					continue
				}
				ids := make([]model.BandID, 0, len(fr.ids)+1)
				ids = append(ids, fr.ids...)
				ids = append(ids, cand.ID())
				local = append(local, frontierRegion{ids: ids, maxRank: r, g: inter})
			}
			mu.Lock()
			out = append(out, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
