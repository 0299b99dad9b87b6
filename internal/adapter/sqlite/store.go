package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/ensemble-cast/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecast_runs (
	model_name TEXT NOT NULL,
	run_timestamp INTEGER NOT NULL,
	PRIMARY KEY (model_name, run_timestamp)
);

CREATE TABLE IF NOT EXISTS statistical_forecasts (
	stat_id INTEGER PRIMARY KEY AUTOINCREMENT,
	model_name TEXT NOT NULL,
	run_timestamp INTEGER NOT NULL,
	column_name TEXT NOT NULL,
	forecast_timestamp INTEGER NOT NULL,
	value REAL,
	UNIQUE(model_name, run_timestamp, column_name, forecast_timestamp)
);

CREATE INDEX IF NOT EXISTS idx_stats_run ON statistical_forecasts(model_name, run_timestamp);
`

// Store archives processed runs and their statistical summaries in SQLite.
// Timestamps are stored as Unix seconds.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the database at path and initialises the schema.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL&_cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialise schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// LastProcessed returns the initialisation time of the newest recorded run
// for the model, or the zero time when none exists.
func (s *Store) LastProcessed(ctx context.Context, model string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(run_timestamp) FROM forecast_runs WHERE model_name = ?`, model,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last processed run: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// RecordRun marks a run as processed. Recording the same run twice is a no-op.
func (s *Store) RecordRun(ctx context.Context, run domain.ModelRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO forecast_runs (model_name, run_timestamp) VALUES (?, ?)`,
		run.Model, run.InitializedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// SaveSummary writes every statistic column of a summary in long format
// within a single transaction.
func (s *Store) SaveSummary(ctx context.Context, summary domain.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO statistical_forecasts
			(model_name, run_timestamp, column_name, forecast_timestamp, value)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	columns := make([]string, 0, len(summary.Columns))
	for column := range summary.Columns {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, column := range columns {
		values := summary.Columns[column]
		for i, t := range summary.Times {
			var value any
			if values[i] != nil {
				value = *values[i]
			}
			if _, err := stmt.ExecContext(ctx,
				summary.Run.Model, summary.Run.InitializedAt.Unix(), column, t.Unix(), value,
			); err != nil {
				return fmt.Errorf("insert %s at %s: %w", column, t, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary: %w", err)
	}

	s.logger.Debug("summary saved",
		"model", summary.Run.Model,
		"run", summary.Run.InitializedAt,
		"columns", len(columns),
	)
	return nil
}

// LoadSummary reads a stored summary back. It returns sql.ErrNoRows when the
// run has no stored statistics.
func (s *Store) LoadSummary(ctx context.Context, run domain.ModelRun) (domain.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, forecast_timestamp, value
		FROM statistical_forecasts
		WHERE model_name = ? AND run_timestamp = ?
		ORDER BY forecast_timestamp, column_name`,
		run.Model, run.InitializedAt.Unix())
	if err != nil {
		return domain.Summary{}, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	type cell struct {
		value *float64
	}
	byColumn := make(map[string]map[int64]cell)
	timeSet := make(map[int64]struct{})

	for rows.Next() {
		var (
			column string
			ts     int64
			value  sql.NullFloat64
		)
		if err := rows.Scan(&column, &ts, &value); err != nil {
			return domain.Summary{}, fmt.Errorf("scan summary row: %w", err)
		}
		if byColumn[column] == nil {
			byColumn[column] = make(map[int64]cell)
		}
		var v *float64
		if value.Valid {
			f := value.Float64
			v = &f
		}
		byColumn[column][ts] = cell{value: v}
		timeSet[ts] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return domain.Summary{}, fmt.Errorf("iterate summary rows: %w", err)
	}
	if len(byColumn) == 0 {
		return domain.Summary{}, sql.ErrNoRows
	}

	stamps := make([]int64, 0, len(timeSet))
	for ts := range timeSet {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	summary := domain.Summary{
		Run:     run,
		Times:   make([]time.Time, len(stamps)),
		Columns: make(map[string][]*float64, len(byColumn)),
	}
	for i, ts := range stamps {
		summary.Times[i] = time.Unix(ts, 0).UTC()
	}
	for column, cells := range byColumn {
		values := make([]*float64, len(stamps))
		for i, ts := range stamps {
			values[i] = cells[ts].value
		}
		summary.Columns[column] = values
	}
	return summary, nil
}

// Purge removes runs older than retentionDays along with their statistics.
func (s *Store) Purge(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM statistical_forecasts WHERE run_timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("purge statistics: %w", err)
	}
	stats, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM forecast_runs WHERE run_timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("purge runs: %w", err)
	}
	runs, _ := res.RowsAffected()

	if runs > 0 {
		s.logger.Info("purged old runs", "runs", runs, "statistics", stats, "retention_days", retentionDays)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
