package persistence

import (
	"time"

	"github.com/quantyard/trendrank/internal/engine"
	"github.com/quantyard/trendrank/internal/oracle"
)

// FromResult converts an engine result into the stored record shape. Score
// is the item's peak resolved value; invalid items append after the ranked
// tail with position continuing the sequence.
func FromResult(result *engine.Result, params oracle.Params, started, finished time.Time) (RunRecord, []Ranking) {
	run := RunRecord{
		RunID:         result.RunID,
		StartedAt:     started,
		FinishedAt:    finished,
		ItemCount:     len(result.Order) + len(result.Invalid),
		InvalidCount:  len(result.Invalid),
		QueriesIssued: result.Stats.QueriesIssued,
		CacheHits:     result.Stats.CacheHits,
		Timeframe:     params.Timeframe,
		Category:      params.Category,
		Property:      params.Property,
		Geo:           params.Geo,
	}

	rankings := make([]Ranking, 0, run.ItemCount)
	for i, item := range result.Order {
		var peak float64
		for _, p := range result.Table[item] {
			if p.Value > peak {
				peak = p.Value
			}
		}
		rankings = append(rankings, Ranking{
			RunID:    result.RunID,
			Position: i + 1,
			Item:     string(item),
			Score:    peak,
		})
	}
	for i, item := range result.Invalid {
		rankings = append(rankings, Ranking{
			RunID:    result.RunID,
			Position: len(result.Order) + i + 1,
			Item:     string(item),
			Invalid:  true,
		})
	}
	return run, rankings
}
