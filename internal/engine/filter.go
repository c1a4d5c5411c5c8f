package engine

import (
	"context"

	applog "github.com/quantyard/trendrank/internal/log"
	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/retry"
)

// filter separates items the oracle has data for from those it does not,
// using minimal single-item probes. An item whose probe comes back empty at
// every date is Invalid and takes no further part in grouping. Probe cache
// hits make this free on resumed runs.
func (e *Engine) filter(ctx context.Context, items []oracle.Item) (comparable, invalid []oracle.Item, err error) {
	progress := applog.NewProgress(e.log, "validity_filter", len(items))
	for _, item := range items {
		out, err := e.fetch(ctx, item)
		if err != nil {
			return nil, nil, err
		}
		progress.Step()

		switch out.Status {
		case retry.OK:
			if out.Response.Empty() {
				invalid = append(invalid, item)
			} else {
				comparable = append(comparable, item)
			}
		case retry.NoData:
			invalid = append(invalid, item)
		case retry.Malformed:
			// A broken probe says nothing about the item itself; keep it
			// comparable and let the partitioner place it conservatively.
			comparable = append(comparable, item)
		}
	}

	e.stats.InvalidItems = len(invalid)
	e.metrics.AddInvalid(len(invalid))
	return comparable, invalid, nil
}
