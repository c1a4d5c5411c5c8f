package engine

import (
	"context"
	"math"

	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/retry"
)

// entry couples an item with the raw 0-100 value observed in the response
// that placed it. That raw value is the refine-threshold signal: near the
// zero-collapse floor it means the placement is noise.
type entry struct {
	item oracle.Item
	rel  float64
}

// partition assigns every item to exactly one of BucketCount magnitude slots,
// keyed by bucket index, by comparing groups of GroupWidth-1 items against a
// common pivot (the first item). The pivot lands in the fixed equal-to-pivot
// bucket (the top index, ratio 1.0). No item is dropped or duplicated:
// all-zero items sink to bucket 0, malformed groups fall to bucket 0 as the
// lowest-confidence placement.
func (e *Engine) partition(ctx context.Context, items []oracle.Item) (map[int][]entry, error) {
	buckets := make(map[int][]entry)
	if len(items) == 0 {
		return buckets, nil
	}

	k := e.cfg.BucketCount
	pivot := items[0]
	rest := items[1:]

	pivotPlaced := false
	width := e.cfg.GroupWidth - 1 // one slot is the pivot's

	for start := 0; start < len(rest); start += width {
		end := start + width
		if end > len(rest) {
			end = len(rest)
		}
		members := rest[start:end]

		group := append([]oracle.Item{pivot}, members...)
		out, err := e.fetch(ctx, group...)
		if err != nil {
			return nil, err
		}

		switch out.Status {
		case retry.OK:
			pivotVal := out.Response.Max(pivot)
			if !pivotPlaced {
				buckets[k-1] = append(buckets[k-1], entry{item: pivot, rel: pivotVal})
				pivotPlaced = true
			}
			for _, m := range members {
				val := out.Response.Max(m)
				idx := bucketIndex(val, pivotVal, k)
				buckets[idx] = append(buckets[idx], entry{item: m, rel: val})
			}
		case retry.NoData, retry.Malformed:
			// Relative placement unknowable for this group; the members keep
			// their spot in the ordering at the lowest-confidence bucket.
			for _, m := range members {
				buckets[0] = append(buckets[0], entry{item: m, rel: 0})
			}
		}
	}

	if !pivotPlaced {
		// Every group failed, or the pivot was the only item.
		buckets[k-1] = append(buckets[k-1], entry{item: pivot, rel: 0})
	}

	return buckets, nil
}

// bucketIndex maps a member's value relative to the pivot's value from the
// same response into [0, k-1]. A zero pivot reading is the oracle's floor:
// anything nonzero next to it is effectively unbounded above and joins the
// pivot's bucket for refinement to untangle.
func bucketIndex(val, pivotVal float64, k int) int {
	if pivotVal == 0 {
		if val > 0 {
			return k - 1
		}
		return 0
	}
	idx := int(math.Floor(val / pivotVal * float64(k-1)))
	if idx < 0 {
		return 0
	}
	if idx > k-1 {
		return k - 1
	}
	return idx
}
