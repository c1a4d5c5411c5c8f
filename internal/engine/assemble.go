package engine

import (
	"context"

	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/retry"
)

// assemble builds the per-date value table for the final order. Adjacent
// pairs in the ranking are queried together and each item's series is
// rescaled by the ratio of its maximum to its neighbor's, chaining every
// column into the last (smallest) item's scale so the table is mutually
// comparable despite the oracle's per-group normalization. Most pair queries
// are cache hits left behind by resolution.
func (e *Engine) assemble(ctx context.Context, order []oracle.Item) (map[oracle.Item][]oracle.Point, error) {
	table := make(map[oracle.Item][]oracle.Point, len(order))
	if len(order) == 0 {
		return table, nil
	}

	// The last item's solo series anchors the chain.
	last := order[len(order)-1]
	out, err := e.fetch(ctx, last)
	if err != nil {
		return nil, err
	}
	if out.Status == retry.OK {
		table[last] = out.Response[last]
	} else {
		table[last] = nil
	}

	factor := 1.0
	for i := len(order) - 2; i >= 0; i-- {
		cur, next := order[i], order[i+1]

		out, err := e.fetch(ctx, cur, next)
		if err != nil {
			return nil, err
		}
		if out.Status != retry.OK {
			// Without the pair there is no bridge; carry the series at the
			// current scale rather than invent one.
			table[cur] = nil
			continue
		}

		curMax, nextMax := out.Response.Max(cur), out.Response.Max(next)
		if nextMax == 0 {
			// Neighbor at the collapse floor: the ratio is unmeasurable, so
			// treat the two as same-scale. Bottom-of-table items only.
			e.log.Debug().Str("item", string(next)).Msg("zero neighbor in scale chain")
		} else {
			factor *= curMax / nextMax
		}

		series := make([]oracle.Point, len(out.Response[cur]))
		for j, p := range out.Response[cur] {
			series[j] = oracle.Point{Date: p.Date, Value: p.Value * factor}
		}
		table[cur] = series
	}

	return table, nil
}
