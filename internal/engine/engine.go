// Package engine reconstructs a magnitude-aware total ordering over a large
// item set from an oracle that only answers bounded-width relative queries.
// It decides which grouped queries to issue, funnels every call through the
// cache and retry controller, and assembles the final value table from
// partial, noisy, relative signals.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantyard/trendrank/internal/cache"
	"github.com/quantyard/trendrank/internal/metrics"
	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/retry"
)

// Config carries the engine's tuning constants. The defaults reproduce the
// observed speed/accuracy tradeoff; both knobs are configuration because
// neither has a principled derivation.
type Config struct {
	// BucketCount is the number of magnitude slots per partitioning pass.
	BucketCount int
	// GroupWidth is the oracle query width, one slot reserved for the pivot.
	GroupWidth int
	// RefineThreshold is the 0-100 relative magnitude above which a bucket
	// is worth repartitioning. Below it, comparisons are noise near the
	// oracle's zero-collapse floor.
	RefineThreshold float64
}

// DefaultConfig returns the tuning used in production runs.
func DefaultConfig() Config {
	return Config{
		BucketCount:     200,
		GroupWidth:      oracle.MaxGroupSize,
		RefineThreshold: 95,
	}
}

// Validate rejects configurations the partitioner cannot work with.
func (c Config) Validate() error {
	if c.GroupWidth < 2 || c.GroupWidth > oracle.MaxGroupSize {
		return fmt.Errorf("engine: group width %d out of range [2,%d]", c.GroupWidth, oracle.MaxGroupSize)
	}
	if c.BucketCount < 2 {
		return fmt.Errorf("engine: bucket count %d, need at least 2", c.BucketCount)
	}
	if c.RefineThreshold <= 0 || c.RefineThreshold > 100 {
		return fmt.Errorf("engine: refine threshold %.1f out of range (0,100]", c.RefineThreshold)
	}
	return nil
}

// Stats counts what a run cost and found.
type Stats struct {
	QueriesIssued   int `json:"queries_issued"`
	CacheHits       int `json:"cache_hits"`
	InvalidItems    int `json:"invalid_items"`
	MalformedGroups int `json:"malformed_groups"`
	BucketsRefined  int `json:"buckets_refined"`
}

// Result is the run's externally visible artifact: the full ordering, the
// per-date value table in a single comparable scale, and the items the
// oracle knows nothing about.
type Result struct {
	RunID   string
	Order   []oracle.Item
	Table   map[oracle.Item][]oracle.Point
	Invalid []oracle.Item
	Stats   Stats
}

// Engine wires the pipeline stages around injected collaborators. The cache
// and retry controller are consulted by every stage that issues a query;
// neither is ambient state.
type Engine struct {
	oracle  oracle.Oracle
	store   cache.Store
	retrier *retry.Controller
	params  oracle.Params
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	// inputIndex is the deterministic secondary sort key: original input
	// order breaks exact value ties.
	inputIndex map[oracle.Item]int

	stats Stats
}

// New builds an engine. metrics may be nil.
func New(orc oracle.Oracle, store cache.Store, retrier *retry.Controller, params oracle.Params, cfg Config, log zerolog.Logger, m *metrics.Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		oracle:  orc,
		store:   store,
		retrier: retrier,
		params:  params,
		cfg:     cfg,
		log:     log,
		metrics: m,
	}, nil
}

// Run executes the full pipeline: validity filter, bucket partitioning with
// selective refinement, pairwise resolution, assembly. One synchronous query
// stream; every answered query is durably cached before the engine proceeds,
// so an interrupted run resumes from the cache.
func (e *Engine) Run(ctx context.Context, items []oracle.Item) (*Result, error) {
	e.stats = Stats{}
	e.inputIndex = make(map[oracle.Item]int, len(items))
	for i, item := range items {
		if _, dup := e.inputIndex[item]; !dup {
			e.inputIndex[item] = i
		}
	}

	runID := uuid.New().String()
	log := e.log.With().Str("run_id", runID).Logger()
	log.Info().Int("items", len(items)).Msg("run started")

	comparable, invalid, err := e.filter(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("validity filter: %w", err)
	}
	log.Info().Int("comparable", len(comparable)).Int("invalid", len(invalid)).
		Msg("validity filter done")

	order, err := e.rank(ctx, comparable)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	log.Info().Int("ranked", len(order)).Int("refined", e.stats.BucketsRefined).
		Msg("ordering resolved")

	table, err := e.assemble(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	log.Info().Int("queries", e.stats.QueriesIssued).Int("cache_hits", e.stats.CacheHits).
		Msg("run finished")

	return &Result{
		RunID:   runID,
		Order:   order,
		Table:   table,
		Invalid: invalid,
		Stats:   e.stats,
	}, nil
}

// Probe runs only the validity filter, reusing the same cache path as a
// full run so nothing probed here is re-queried later.
func (e *Engine) Probe(ctx context.Context, items []oracle.Item) (valid, invalid []oracle.Item, err error) {
	e.stats = Stats{}
	e.inputIndex = make(map[oracle.Item]int, len(items))
	for i, item := range items {
		if _, dup := e.inputIndex[item]; !dup {
			e.inputIndex[item] = i
		}
	}
	return e.filter(ctx, items)
}

// rank partitions the comparable set and fully resolves every terminal
// bucket, returning the descending order.
func (e *Engine) rank(ctx context.Context, items []oracle.Item) ([]oracle.Item, error) {
	terminal, err := e.refine(ctx, items)
	if err != nil {
		return nil, err
	}

	order := make([]oracle.Item, 0, len(items))
	for _, bucket := range terminal {
		resolved, err := e.resolve(ctx, bucket)
		if err != nil {
			return nil, err
		}
		order = append(order, resolved...)
	}
	return order, nil
}

func (e *Engine) countQuery()     { e.stats.QueriesIssued++; e.metrics.IncQueries() }
func (e *Engine) countCacheHit()  { e.stats.CacheHits++; e.metrics.IncCacheHits() }
func (e *Engine) countMalformed() { e.stats.MalformedGroups++; e.metrics.IncMalformed() }
