package engine

import (
	"context"

	"github.com/quantyard/trendrank/internal/cache"
	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/retry"
)

// fetch is the single funnel for oracle access: cache lookup first, network
// only on a miss, result stored durably before returning. NoData is cached
// as an empty response so prior runs' dead probes are never re-issued.
// Malformed responses are not cached; retrying them forever would loop, so
// the outcome is surfaced once and the caller degrades the affected items.
func (e *Engine) fetch(ctx context.Context, items ...oracle.Item) (retry.Outcome, error) {
	group, err := oracle.NewGroup(e.params, items...)
	if err != nil {
		return retry.Outcome{}, err
	}

	key := cache.NewKey(group)
	if resp, ok := e.store.Get(key); ok {
		e.countCacheHit()
		if len(resp) == 0 {
			return retry.Outcome{Status: retry.NoData}, nil
		}
		return retry.Outcome{Status: retry.OK, Response: resp}, nil
	}

	out, err := e.retrier.Do(ctx, func(ctx context.Context) (oracle.Response, error) {
		e.countQuery()
		return e.oracle.Query(ctx, group)
	})
	if err != nil {
		return retry.Outcome{}, err
	}

	switch out.Status {
	case retry.OK:
		if err := e.store.Put(key, out.Response); err != nil {
			return retry.Outcome{}, err
		}
	case retry.NoData:
		if err := e.store.Put(key, oracle.Response{}); err != nil {
			return retry.Outcome{}, err
		}
	case retry.Malformed:
		e.countMalformed()
		e.log.Warn().Err(out.Err).Int("group", len(items)).Msg("malformed oracle response")
	}
	return out, nil
}
