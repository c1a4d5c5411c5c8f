// Package persistence defines the optional durable record of completed runs:
// which items ranked where, at what resolved score, under which parameters.
package persistence

import (
	"context"
	"time"
)

// RunRecord describes one completed ranking run.
type RunRecord struct {
	RunID         string    `json:"run_id" db:"run_id"`
	StartedAt     time.Time `json:"started_at" db:"started_at"`
	FinishedAt    time.Time `json:"finished_at" db:"finished_at"`
	ItemCount     int       `json:"item_count" db:"item_count"`
	InvalidCount  int       `json:"invalid_count" db:"invalid_count"`
	QueriesIssued int       `json:"queries_issued" db:"queries_issued"`
	CacheHits     int       `json:"cache_hits" db:"cache_hits"`
	Timeframe     string    `json:"timeframe" db:"timeframe"`
	Category      int       `json:"category" db:"category"`
	Property      string    `json:"property" db:"property"`
	Geo           string    `json:"geo" db:"geo"`
}

// Ranking is one item's final position and peak resolved score in a run.
type Ranking struct {
	RunID    string  `json:"run_id" db:"run_id"`
	Position int     `json:"position" db:"position"`
	Item     string  `json:"item" db:"item"`
	Score    float64 `json:"score" db:"score"`
	Invalid  bool    `json:"invalid" db:"invalid"`
}

// RankingsRepo stores completed runs. Implementations must make SaveRun
// atomic: a run is either fully recorded or absent.
type RankingsRepo interface {
	SaveRun(ctx context.Context, run RunRecord, rankings []Ranking) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	GetRankings(ctx context.Context, runID string) ([]Ranking, error)
	Close() error
}
