package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantyard/trendrank/internal/oracle"
)

func newController(t *testing.T, retries int) *Controller {
	t.Helper()
	c, err := NewController(retries, time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestController_OK(t *testing.T) {
	c := newController(t, 3)
	want := oracle.Response{"AAPL": {{Value: 100}}}

	out, err := c.Do(context.Background(), func(context.Context) (oracle.Response, error) {
		return want, nil
	})
	require.NoError(t, err)
	assert.Equal(t, OK, out.Status)
	assert.Equal(t, want, out.Response)
}

func TestController_RetriesOnlyRateLimits(t *testing.T) {
	c := newController(t, 3)

	var calls int
	out, err := c.Do(context.Background(), func(context.Context) (oracle.Response, error) {
		calls++
		if calls < 3 {
			return nil, oracle.ErrRateLimited
		}
		return oracle.Response{"AAPL": {{Value: 100}}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, OK, out.Status)
	assert.Equal(t, 3, calls)
}

func TestController_ExhaustionIsFatal(t *testing.T) {
	c := newController(t, 2)

	var calls int
	_, err := c.Do(context.Background(), func(context.Context) (oracle.Response, error) {
		calls++
		return nil, oracle.ErrRateLimited
	})
	assert.ErrorIs(t, err, ErrRateLimitExhausted)
	assert.Equal(t, 3, calls) // initial call + 2 retries
}

func TestController_ZeroRetries(t *testing.T) {
	c := newController(t, 0)

	var calls int
	_, err := c.Do(context.Background(), func(context.Context) (oracle.Response, error) {
		calls++
		return nil, oracle.ErrRateLimited
	})
	assert.ErrorIs(t, err, ErrRateLimitExhausted)
	assert.Equal(t, 1, calls)
}

func TestController_NoDataNotRetried(t *testing.T) {
	c := newController(t, 3)

	var calls int
	out, err := c.Do(context.Background(), func(context.Context) (oracle.Response, error) {
		calls++
		return nil, oracle.ErrNoData
	})
	require.NoError(t, err)
	assert.Equal(t, NoData, out.Status)
	assert.Equal(t, 1, calls)
}

func TestController_MalformedNotRetried(t *testing.T) {
	c := newController(t, 3)

	detail := fmt.Errorf("%w: item missing", oracle.ErrMalformed)
	var calls int
	out, err := c.Do(context.Background(), func(context.Context) (oracle.Response, error) {
		calls++
		return nil, detail
	})
	require.NoError(t, err)
	assert.Equal(t, Malformed, out.Status)
	assert.ErrorIs(t, out.Err, oracle.ErrMalformed)
	assert.Equal(t, 1, calls)
}

func TestController_ContextCancelDuringBackoff(t *testing.T) {
	c, err := NewController(3, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = c.Do(ctx, func(context.Context) (oracle.Response, error) {
		return nil, oracle.ErrRateLimited
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewController_RangeCheck(t *testing.T) {
	_, err := NewController(-1, time.Second, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewController(5, time.Second, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewController(4, time.Second, zerolog.Nop())
	assert.NoError(t, err)
}

func TestController_UnwrappedTransportErrorIsMalformed(t *testing.T) {
	c := newController(t, 3)

	out, err := c.Do(context.Background(), func(context.Context) (oracle.Response, error) {
		return nil, errors.New("connection reset")
	})
	require.NoError(t, err)
	assert.Equal(t, Malformed, out.Status)
}
