package engine

import (
	"context"
	"sort"

	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/retry"
)

// resolve fully orders one terminal bucket. Buckets below the refine
// threshold are left in original input order: near the zero-collapse floor
// the oracle's comparisons are noise, so an order is reported but not bought
// with more queries. Exact value ties break by original input order, which
// makes the result a strict total order.
func (e *Engine) resolve(ctx context.Context, bucket []entry) ([]oracle.Item, error) {
	items := make([]oracle.Item, len(bucket))
	for i, en := range bucket {
		items[i] = en.item
	}
	sort.Slice(items, func(i, j int) bool {
		return e.inputIndex[items[i]] < e.inputIndex[items[j]]
	})

	if len(items) <= 1 || maxRel(bucket) < e.cfg.RefineThreshold {
		return items, nil
	}

	var score map[oracle.Item]float64
	var err error
	if len(items) <= e.cfg.GroupWidth {
		score, err = e.scoreWhole(ctx, items)
	} else {
		// Only reachable when refinement could not split the bucket below
		// the group width; chunked comparisons against a shared reference.
		score, err = e.scoreChunked(ctx, items)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		si, sj := score[items[i]], score[items[j]]
		if si != sj {
			return si > sj
		}
		return e.inputIndex[items[i]] < e.inputIndex[items[j]]
	})
	return items, nil
}

// scoreWhole compares all members in a single response, where raw values are
// directly comparable. This is the common case and is usually a cache hit
// from the partitioning pass.
func (e *Engine) scoreWhole(ctx context.Context, items []oracle.Item) (map[oracle.Item]float64, error) {
	score := make(map[oracle.Item]float64, len(items))
	out, err := e.fetch(ctx, items...)
	if err != nil {
		return nil, err
	}
	if out.Status != retry.OK {
		return score, nil // all zero; tie-break orders the bucket
	}
	for _, item := range items {
		score[item] = out.Response.Max(item)
	}
	return score, nil
}

// scoreChunked scales each chunk against the first member as reference. A
// reference collapsed to zero degrades to the chunk's raw scale; noisy, but
// deterministic, and confined to buckets refinement already failed to split.
func (e *Engine) scoreChunked(ctx context.Context, items []oracle.Item) (map[oracle.Item]float64, error) {
	ref := items[0]
	score := map[oracle.Item]float64{ref: 1}

	width := e.cfg.GroupWidth - 1
	rest := items[1:]
	for start := 0; start < len(rest); start += width {
		end := start + width
		if end > len(rest) {
			end = len(rest)
		}
		members := rest[start:end]

		group := append([]oracle.Item{ref}, members...)
		out, err := e.fetch(ctx, group...)
		if err != nil {
			return nil, err
		}
		if out.Status != retry.OK {
			for _, m := range members {
				score[m] = 0
			}
			continue
		}

		refVal := out.Response.Max(ref)
		for _, m := range members {
			val := out.Response.Max(m)
			if refVal > 0 {
				score[m] = val / refVal
			} else {
				score[m] = val
			}
		}
	}
	return score, nil
}
