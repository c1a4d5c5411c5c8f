package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:      server.URL,
		RateLimitRPS: 1000, // don't throttle tests
	}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestClient_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"AAPL", "MSFT"}, r.URL.Query()["q"])
		assert.Equal(t, "all", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "16", r.URL.Query().Get("cat"))

		w.Write([]byte(`{"series":{
			"AAPL":[{"date":"2024-01-01","value":100},{"date":"2024-02-01","value":80}],
			"MSFT":[{"date":"2024-01-01","value":40},{"date":"2024-02-01","value":55}]
		}}`))
	})

	group, err := NewGroup(Params{Timeframe: "all", Category: 16}, "AAPL", "MSFT")
	require.NoError(t, err)

	resp, err := client.Query(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, 100.0, resp.Max("AAPL"))
	assert.Equal(t, 55.0, resp.Max("MSFT"))
	assert.Len(t, resp["AAPL"], 2)
}

func TestClient_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	group, _ := NewGroup(Params{Timeframe: "all"}, "AAPL")
	_, err := client.Query(context.Background(), group)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_NoData(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 404", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"empty series map", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"series":{}}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			group, _ := NewGroup(Params{Timeframe: "all"}, "ZZZZ")
			_, err := client.Query(context.Background(), group)
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestClient_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing item", `{"series":{"OTHER":[{"date":"2024-01-01","value":100}]}}`},
		{"value out of range", `{"series":{"AAPL":[{"date":"2024-01-01","value":150}]}}`},
		{"bad date", `{"series":{"AAPL":[{"date":"Jan 1","value":100}]}}`},
		{"max not pinned", `{"series":{"AAPL":[{"date":"2024-01-01","value":60}]}}`},
		{"not json", `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			group, _ := NewGroup(Params{Timeframe: "all"}, "AAPL")
			_, err := client.Query(context.Background(), group)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestClient_AllZeroGroupIsNotMalformed(t *testing.T) {
	// Zero-collapse: a group of uniformly tiny terms legitimately comes back
	// all zeros, with no member pinned at 100.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"series":{"AAPL":[{"date":"2024-01-01","value":0}]}}`))
	})

	group, _ := NewGroup(Params{Timeframe: "all"}, "AAPL")
	resp, err := client.Query(context.Background(), group)
	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestClient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	group, _ := NewGroup(Params{Timeframe: "all"}, "AAPL")
	for i := 0; i < 5; i++ {
		_, err := client.Query(context.Background(), group)
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrRateLimited))
	}

	// Sixth call must be rejected by the open breaker without touching the wire.
	_, err := client.Query(context.Background(), group)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 5, calls)
}

func TestNewGroup_WidthCap(t *testing.T) {
	_, err := NewGroup(Params{}, "A", "B", "C", "D", "E", "F")
	assert.Error(t, err)

	_, err = NewGroup(Params{})
	assert.Error(t, err)

	g, err := NewGroup(Params{}, "A", "B", "C", "D", "E")
	require.NoError(t, err)
	assert.Len(t, g.Items, 5)
}
