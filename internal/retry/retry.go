// Package retry wraps single oracle calls with the bounded retry/backoff
// discipline. Expected oracle conditions travel as an explicit Outcome, not
// as error-based control flow, so every caller handles every kind.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantyard/trendrank/internal/oracle"
)

// Status classifies the result of one wrapped oracle call.
type Status int

const (
	// OK carries a usable response.
	OK Status = iota
	// NoData means the oracle has nothing for the group. Not retried.
	NoData
	// Malformed means the oracle answered inconsistently with the request.
	// Not retried; the caller routes affected items to the low-confidence path.
	Malformed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case NoData:
		return "no_data"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Outcome is the explicit result of a wrapped call. Err is set only for
// Malformed, carrying the underlying detail for the log.
type Outcome struct {
	Status   Status
	Response oracle.Response
	Err      error
}

// ErrRateLimitExhausted aborts the run: the oracle itself is unusable right
// now. Already-cached progress stays valid for the next attempt.
var ErrRateLimitExhausted = errors.New("retry: rate limit retries exhausted")

// MaxRetries bounds the configurable retry count.
const MaxRetries = 4

// Controller retries rate-limited calls with linearly increasing backoff.
// All other failures pass through unretried.
type Controller struct {
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
	onRetry    func()
}

// OnRetry registers a hook invoked once per rate-limit retry, used to feed
// the metrics counters without coupling this package to them.
func (c *Controller) OnRetry(fn func()) { c.onRetry = fn }

// NewController creates a controller. retries must be in [0,4].
func NewController(retries int, backoff time.Duration, log zerolog.Logger) (*Controller, error) {
	if retries < 0 || retries > MaxRetries {
		return nil, fmt.Errorf("retry: retries %d out of range [0,%d]", retries, MaxRetries)
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Controller{maxRetries: retries, backoff: backoff, log: log}, nil
}

// Do runs call, retrying only on oracle.ErrRateLimited. A fatal error return
// means the run must stop (retries exhausted or context cancelled); every
// expected condition comes back inside the Outcome.
func (c *Controller) Do(ctx context.Context, call func(context.Context) (oracle.Response, error)) (Outcome, error) {
	for attempt := 0; ; attempt++ {
		resp, err := call(ctx)
		switch {
		case err == nil:
			return Outcome{Status: OK, Response: resp}, nil

		case errors.Is(err, oracle.ErrNoData):
			return Outcome{Status: NoData}, nil

		case errors.Is(err, oracle.ErrRateLimited):
			if attempt >= c.maxRetries {
				return Outcome{}, fmt.Errorf("%w after %d attempts: %v", ErrRateLimitExhausted, attempt+1, err)
			}
			delay := time.Duration(attempt+1) * c.backoff
			c.log.Warn().Int("attempt", attempt+1).Dur("backoff", delay).
				Msg("rate limited, backing off")
			if c.onRetry != nil {
				c.onRetry()
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Outcome{}, ctx.Err()
			}

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return Outcome{}, err

		default:
			// Malformed and transport-level oddities share a fate: absorbed
			// locally, never retried, logged by the caller.
			return Outcome{Status: Malformed, Err: err}, nil
		}
	}
}
