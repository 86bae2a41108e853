// Package store persists analysis reports keyed by input hash, so repeat
// runs over identical inputs can be served from cache.
package store

import (
	"context"
	"time"

	"github.com/ctessum/geom"

	"github.com/isolysis/isocover/internal/model"
)

// ReportFilter specifies criteria for listing saved reports.
type ReportFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ReportSummary is the listing view of a saved report.
type ReportSummary struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	InputHash    string    `json:"input_hash"`
	TotalPoints  int       `json:"total_points"`
	TotalRegions int       `json:"total_regions"`
	Truncated    bool      `json:"truncated"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store defines the persistence interface for analysis reports.
type Store interface {
	// SaveReport persists a report under its input hash, replacing any
	// earlier report for the same hash. Region geometries are stored
	// alongside the JSON payload as EWKB. Returns the storage row ID.
	SaveReport(ctx context.Context, inputHash string, rep *model.AnalysisReport) (string, error)

	// GetReportByHash returns the cached report for an input hash, or
	// (nil, nil) when none exists.
	GetReportByHash(ctx context.Context, inputHash string) (*model.AnalysisReport, error)

	// GetReport returns a report by storage row ID.
	GetReport(ctx context.Context, id string) (*model.AnalysisReport, error)

	// ListReports returns saved report summaries, newest first.
	ListReports(ctx context.Context, filter ReportFilter) ([]ReportSummary, error)

	// GetRegionGeometry returns the stored geometry of one intersection
	// region of a report, or (nil, nil) when absent.
	GetRegionGeometry(ctx context.Context, reportID, regionKey string) (geom.Polygonal, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
