package raster

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Opener opens a raster source. The default opener reads GeoTIFF files.
type Opener func(Descriptor) (Handle, error)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithOpener replaces the default GeoTIFF opener.
func WithOpener(open Opener) PoolOption {
	return func(p *Pool) { p.open = open }
}

// Pool enforces the single-open, multi-query discipline: each source is
// opened at most once per run no matter how many geometries are aggregated
// against it, concurrent acquirers of the same source collapse onto one
// open call, and a failed open is remembered for the rest of the run
// rather than retried.
type Pool struct {
	open  Opener
	group singleflight.Group

	mu      sync.Mutex
	handles map[string]Handle
	errs    map[string]error
}

// NewPool creates a pool. Close must be called on every exit path.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		open: func(d Descriptor) (Handle, error) {
			return OpenGeoTIFF(d)
		},
		handles: make(map[string]Handle),
		errs:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns the shared handle for the descriptor, opening the source
// on first use. The returned handle is owned by the pool; callers must not
// close it.
func (p *Pool) Acquire(d Descriptor) (Handle, error) {
	v, err, _ := p.group.Do(d.ID, func() (any, error) {
		p.mu.Lock()
		if h, ok := p.handles[d.ID]; ok {
			p.mu.Unlock()
			return h, nil
		}
		if cached, ok := p.errs[d.ID]; ok {
			p.mu.Unlock()
			return nil, cached
		}
		p.mu.Unlock()

		h, openErr := p.open(d)
		p.mu.Lock()
		defer p.mu.Unlock()
		if openErr != nil {
			wrapped := eris.Wrapf(openErr, "raster: open source %q", d.ID)
			p.errs[d.ID] = wrapped
			zap.L().Error("raster: source failed to open",
				zap.String("raster_id", d.ID),
				zap.String("path", d.Path),
				zap.Error(openErr),
			)
			return nil, wrapped
		}
		p.handles[d.ID] = h
		zap.L().Debug("raster: source opened", zap.String("raster_id", d.ID))
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Handle), nil
}

// Close releases every open handle. Safe to call multiple times.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for id, h := range p.handles {
		if err := h.Close(); err != nil && first == nil {
			first = eris.Wrapf(err, "raster: close source %q", id)
		}
		delete(p.handles, id)
	}
	return first
}
