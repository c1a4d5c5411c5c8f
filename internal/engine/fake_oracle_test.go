package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantyard/trendrank/internal/oracle"
)

// fakeOracle answers grouped queries from a hidden true-magnitude table the
// way the real thing does: each response scaled so its own maximum is 100,
// quantized to integers, small ratios collapsing to zero. Unknown items come
// back as all-zero series; a group of only unknown items has no data at all.
type fakeOracle struct {
	truth   map[oracle.Item]float64
	queries int

	// rateLimitEvery injects a rate-limit refusal on every Nth call when >0.
	rateLimitEvery int
	// alwaysRateLimited simulates an exhausted quota.
	alwaysRateLimited bool
	// malformedItems poisons any group containing one of these items.
	malformedItems map[oracle.Item]bool
}

func newFakeOracle(truth map[oracle.Item]float64) *fakeOracle {
	return &fakeOracle{truth: truth}
}

var fakeDates = []time.Time{
	time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
}

func (f *fakeOracle) Query(ctx context.Context, group oracle.Group) (oracle.Response, error) {
	f.queries++

	if f.alwaysRateLimited {
		return nil, oracle.ErrRateLimited
	}
	if f.rateLimitEvery > 0 && f.queries%f.rateLimitEvery == 0 {
		return nil, oracle.ErrRateLimited
	}
	for _, item := range group.Items {
		if f.malformedItems[item] {
			return nil, fmt.Errorf("%w: garbled body", oracle.ErrMalformed)
		}
	}

	var max float64
	known := false
	for _, item := range group.Items {
		if truth, ok := f.truth[item]; ok {
			known = true
			if truth > max {
				max = truth
			}
		}
	}
	if !known {
		return nil, oracle.ErrNoData
	}

	resp := make(oracle.Response, len(group.Items))
	for _, item := range group.Items {
		truth := f.truth[item] // zero for unknown items
		scaled := 0.0
		if max > 0 {
			scaled = math.Round(truth / max * 100)
		}
		series := make([]oracle.Point, len(fakeDates))
		for i, date := range fakeDates {
			// Second date dips to 80% so series have shape, peak first.
			v := scaled
			if i == 1 {
				v = math.Round(scaled * 0.8)
			}
			series[i] = oracle.Point{Date: date, Value: v}
		}
		resp[item] = series
	}
	return resp, nil
}
