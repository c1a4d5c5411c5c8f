// Package oracle defines the relative-popularity data source and its wire
// contract: bounded-width grouped queries answered with 0-100 series scaled
// so the group maximum sits at 100.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxGroupSize is the hard cap the upstream API places on one query.
const MaxGroupSize = 5

// Item is an opaque identifier, unique within a run (e.g. "NASDAQ:AAPL").
type Item string

// Params is the immutable query configuration shared by every oracle call in
// a run. Values from different Params spaces are never comparable.
type Params struct {
	Timeframe string `yaml:"timeframe" json:"timeframe"`
	Category  int    `yaml:"category" json:"category"`
	Property  string `yaml:"property" json:"property"`
	Geo       string `yaml:"geo" json:"geo"`
}

// Group is the unit of oracle query: 1-5 items plus the run parameters.
// Member order is irrelevant to the oracle.
type Group struct {
	Items  []Item
	Params Params
}

// NewGroup builds a query group, enforcing the width cap.
func NewGroup(params Params, items ...Item) (Group, error) {
	if len(items) == 0 {
		return Group{}, errors.New("oracle: empty group")
	}
	if len(items) > MaxGroupSize {
		return Group{}, fmt.Errorf("oracle: group of %d exceeds max width %d", len(items), MaxGroupSize)
	}
	return Group{Items: items, Params: params}, nil
}

// Point is one dated observation. Value is quantized to [0,100] and only
// meaningful relative to other members of the same response.
type Point struct {
	Date  time.Time `yaml:"date" json:"date"`
	Value float64   `yaml:"value" json:"value"`
}

// Response maps each requested item to its series. Values from different
// responses are comparable only through a shared pivot item.
type Response map[Item][]Point

// Max returns the largest value in the item's series, 0 for an absent or
// empty series.
func (r Response) Max(item Item) float64 {
	var max float64
	for _, p := range r[item] {
		if p.Value > max {
			max = p.Value
		}
	}
	return max
}

// Empty reports whether no item in the response carries any nonzero value.
func (r Response) Empty() bool {
	for item := range r {
		if r.Max(item) != 0 {
			return false
		}
	}
	return true
}

// Error kinds the engine distinguishes. Everything else from the transport is
// wrapped and treated as malformed.
var (
	// ErrRateLimited means the oracle refused the call for quota reasons.
	// The only retryable condition.
	ErrRateLimited = errors.New("oracle: rate limited")

	// ErrNoData means the oracle has no series for the requested group.
	ErrNoData = errors.New("oracle: no data")

	// ErrMalformed means the oracle answered with data inconsistent with the
	// requested group.
	ErrMalformed = errors.New("oracle: malformed response")
)

// Oracle is the external collaborator issuing one grouped query at a time.
type Oracle interface {
	Query(ctx context.Context, group Group) (Response, error)
}
