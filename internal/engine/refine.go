package engine

import (
	"context"
	"sort"

	"github.com/quantyard/trendrank/internal/oracle"
)

// maxRefineDepth caps pathological recursion when oracle noise keeps
// re-partitioning a bucket into itself. Terminal-by-depth buckets are
// handed to the resolver as-is.
const maxRefineDepth = 32

// segment is one slot in the ordered worklist: a bucket of items awaiting a
// refine-or-accept decision, or already terminal.
type segment struct {
	entries  []entry
	depth    int
	terminal bool
}

func maxRel(entries []entry) float64 {
	var max float64
	for _, en := range entries {
		if en.rel > max {
			max = en.rel
		}
	}
	return max
}

// refine partitions the comparable set and then repeatedly repartitions any
// bucket whose magnitude clears the threshold and whose size exceeds the
// group width, splicing sub-buckets in place so the descending order is
// preserved. An explicit worklist, not call recursion: tens of thousands of
// items must not ride the call stack, and each step stays checkpointable
// because every underlying query is already cached when it completes.
func (e *Engine) refine(ctx context.Context, items []oracle.Item) ([][]entry, error) {
	segments, err := e.partitionToSegments(ctx, items, 0)
	if err != nil {
		return nil, err
	}

	for {
		idx := -1
		for i := range segments {
			if !segments[i].terminal {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		seg := segments[idx]

		if len(seg.entries) <= e.cfg.GroupWidth ||
			maxRel(seg.entries) < e.cfg.RefineThreshold ||
			seg.depth >= maxRefineDepth {
			segments[idx].terminal = true
			continue
		}

		segItems := make([]oracle.Item, len(seg.entries))
		for i, en := range seg.entries {
			segItems[i] = en.item
		}

		sub, err := e.partitionToSegments(ctx, segItems, seg.depth+1)
		if err != nil {
			return nil, err
		}
		e.stats.BucketsRefined++

		// A pass that failed to split the bucket makes no progress; accept
		// the bucket rather than loop.
		if len(sub) == 1 && len(sub[0].entries) == len(seg.entries) {
			sub[0].terminal = true
		}

		segments = append(segments[:idx], append(sub, segments[idx+1:]...)...)
	}

	out := make([][]entry, len(segments))
	for i, seg := range segments {
		out[i] = seg.entries
	}
	return out, nil
}

// partitionToSegments runs one partitioning pass and returns the non-empty
// buckets as segments in descending bucket order.
func (e *Engine) partitionToSegments(ctx context.Context, items []oracle.Item, depth int) ([]segment, error) {
	buckets, err := e.partition(ctx, items)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(buckets))
	for idx := range buckets {
		indices = append(indices, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))

	segments := make([]segment, 0, len(indices))
	for _, idx := range indices {
		segments = append(segments, segment{entries: buckets[idx], depth: depth})
	}
	return segments, nil
}
