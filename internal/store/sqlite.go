package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ctessum/geom"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/isolysis/isocover/internal/ingest"
	"github.com/isolysis/isocover/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	input_hash    TEXT NOT NULL UNIQUE,
	payload       TEXT NOT NULL,
	total_points  INTEGER NOT NULL DEFAULT 0,
	total_regions INTEGER NOT NULL DEFAULT 0,
	truncated     INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS report_regions (
	id         TEXT PRIMARY KEY,
	report_id  TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	region_key TEXT NOT NULL,
	arity      INTEGER NOT NULL,
	area_km2   REAL NOT NULL,
	geom       BLOB
);

CREATE INDEX IF NOT EXISTS idx_reports_input_hash ON reports(input_hash);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
CREATE INDEX IF NOT EXISTS idx_report_regions_report_id ON report_regions(report_id);
CREATE INDEX IF NOT EXISTS idx_report_regions_key ON report_regions(region_key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveReport(ctx context.Context, inputHash string, rep *model.AnalysisReport) (string, error) {
	payload, err := json.Marshal(rep)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin save")
	}
	defer func() { _ = tx.Rollback() }()

	// Replace any earlier report for the same inputs; region rows cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE input_hash = ?`, inputHash); err != nil {
		return "", eris.Wrap(err, "sqlite: evict stale report")
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (id, run_id, input_hash, payload, total_points, total_regions, truncated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rep.RunID, inputHash, string(payload),
		rep.TotalPoints, rep.TotalRegions, boolToInt(rep.Truncated), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert report")
	}

	for _, r := range rep.Regions {
		var blob []byte
		if r.Geom != nil {
			blob, err = ingest.EncodeEWKB(r.Geom)
			if err != nil {
				return "", eris.Wrapf(err, "sqlite: encode region %s", r.Key())
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO report_regions (id, report_id, region_key, arity, area_km2, geom) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), id, r.Key(), r.Arity(), r.AreaKm2, blob,
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: insert region %s", r.Key())
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit save")
	}
	return id, nil
}

func (s *SQLiteStore) GetReportByHash(ctx context.Context, inputHash string) (*model.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE input_hash = ?`, inputHash)
	return scanReport(row)
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE id = ?`, id)
	return scanReport(row)
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]ReportSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, input_hash, total_points, total_regions, truncated, created_at
		 FROM reports ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer func() { _ = rows.Close() }()

	var out []ReportSummary
	for rows.Next() {
		var sum ReportSummary
		var truncated int
		if err := rows.Scan(&sum.ID, &sum.RunID, &sum.InputHash, &sum.TotalPoints, &sum.TotalRegions, &truncated, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report summary")
		}
		sum.Truncated = truncated != 0
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

func (s *SQLiteStore) GetRegionGeometry(ctx context.Context, reportID, regionKey string) (geom.Polygonal, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT geom FROM report_regions WHERE report_id = ? AND region_key = ?`,
		reportID, regionKey,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get region %s", regionKey)
	}
	if len(blob) == 0 {
		return nil, nil
	}
	return ingest.DecodeEWKB(blob)
}

func scanReport(row *sql.Row) (*model.AnalysisReport, error) {
	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}
	var rep model.AnalysisReport
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report payload")
	}
	return &rep, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
