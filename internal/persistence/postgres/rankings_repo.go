// Package postgres implements the rankings repository on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quantyard/trendrank/internal/persistence"
)

type rankingsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRankingsRepo connects to Postgres at dsn and ensures the schema.
func NewRankingsRepo(dsn string, timeout time.Duration) (persistence.RankingsRepo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo := &rankingsRepo{db: db, timeout: timeout}
	if err := repo.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRankingsRepoWithDB wraps an existing connection; used by tests.
func NewRankingsRepoWithDB(db *sqlx.DB, timeout time.Duration) persistence.RankingsRepo {
	return &rankingsRepo{db: db, timeout: timeout}
}

func (r *rankingsRepo) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id         TEXT PRIMARY KEY,
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ NOT NULL,
		item_count     INT NOT NULL,
		invalid_count  INT NOT NULL,
		queries_issued INT NOT NULL,
		cache_hits     INT NOT NULL,
		timeframe      TEXT NOT NULL,
		category       INT NOT NULL,
		property       TEXT NOT NULL DEFAULT '',
		geo            TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS rankings (
		run_id   TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		position INT NOT NULL,
		item     TEXT NOT NULL,
		score    DOUBLE PRECISION NOT NULL,
		invalid  BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, position, item)
	);`
	_, err := r.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveRun records the run and all rankings in one transaction.
func (r *rankingsRepo) SaveRun(ctx context.Context, run persistence.RunRecord, rankings []persistence.Ranking) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, finished_at, item_count, invalid_count,
			queries_issued, cache_hits, timeframe, category, property, geo)
		VALUES (:run_id, :started_at, :finished_at, :item_count, :invalid_count,
			:queries_issued, :cache_hits, :timeframe, :category, :property, :geo)`, run)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("run %s already recorded: %w", run.RunID, err)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	for _, ranking := range rankings {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO rankings (run_id, position, item, score, invalid)
			VALUES (:run_id, :position, :item, :score, :invalid)`, ranking)
		if err != nil {
			return fmt.Errorf("insert ranking %q: %w", ranking.Item, err)
		}
	}

	return tx.Commit()
}

func (r *rankingsRepo) GetRun(ctx context.Context, runID string) (*persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.RunRecord
	err := r.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE run_id = $1`, runID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

func (r *rankingsRepo) GetRankings(ctx context.Context, runID string) ([]persistence.Ranking, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rankings []persistence.Ranking
	err := r.db.SelectContext(ctx, &rankings,
		`SELECT * FROM rankings WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("get rankings: %w", err)
	}
	return rankings, nil
}

func (r *rankingsRepo) Close() error {
	return r.db.Close()
}
