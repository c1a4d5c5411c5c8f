package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ClientConfig holds the HTTP binding configuration. Zero values fall back
// to defaults suitable for the public endpoint's free tier.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	Proxy          string        `yaml:"proxy"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	UserAgent      string        `yaml:"user_agent"`
}

// Client queries the relative-popularity API over HTTP with token-bucket
// rate limiting and a circuit breaker around the transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

// NewClient creates an oracle client. The breaker opens after five
// consecutive transport failures and probes again after a minute.
func NewClient(config ClientConfig, log zerolog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://trends.googleapis.example/v2"
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = 0.5 // free tier tolerates roughly one call per 2s
	}
	if config.RateLimitBurst == 0 {
		config.RateLimitBurst = 1
	}
	if config.UserAgent == "" {
		config.UserAgent = "trendrank/1.0"
	}

	transport := http.DefaultTransport
	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "oracle",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit state change")
		},
	})

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.RequestTimeout,
			Transport: transport,
		},
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		token:     config.Token,
		userAgent: config.UserAgent,
		limiter:   rate.NewLimiter(rate.Limit(config.RateLimitRPS), config.RateLimitBurst),
		breaker:   breaker,
		log:       log,
	}, nil
}

// wirePoint is the JSON shape of one observation on the wire.
type wirePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// wireResponse is the JSON body of a successful query.
type wireResponse struct {
	Series map[string][]wirePoint `json:"series"`
}

// Query issues one grouped query. Rate limiting happens before the breaker
// so an open circuit does not burn quota tokens.
func (c *Client) Query(ctx context.Context, group Group) (Response, error) {
	if len(group.Items) == 0 || len(group.Items) > MaxGroupSize {
		return nil, fmt.Errorf("%w: group width %d", ErrMalformed, len(group.Items))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doQuery(ctx, group)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// An open breaker means the endpoint is refusing us; treat it
			// like the quota condition so the retry controller backs off.
			return nil, fmt.Errorf("%w: circuit open", ErrRateLimited)
		}
		return nil, err
	}
	return result.(Response), nil
}

func (c *Client) doQuery(ctx context.Context, group Group) (Response, error) {
	q := url.Values{}
	for _, item := range group.Items {
		q.Add("q", string(item))
	}
	q.Set("timeframe", group.Params.Timeframe)
	q.Set("cat", strconv.Itoa(group.Params.Category))
	if group.Params.Property != "" {
		q.Set("gprop", group.Params.Property)
	}
	if group.Params.Geo != "" {
		q.Set("geo", group.Params.Geo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/interest?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().Int("status", resp.StatusCode).
		Int("group", len(group.Items)).
		Dur("latency", time.Since(start)).
		Msg("oracle query")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: HTTP %d", ErrMalformed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return decodeResponse(group, wire)
}

// decodeResponse validates the wire body against the requested group and
// converts it to the engine's Response shape.
func decodeResponse(group Group, wire wireResponse) (Response, error) {
	if len(wire.Series) == 0 {
		return nil, ErrNoData
	}

	out := make(Response, len(group.Items))
	for _, item := range group.Items {
		series, ok := wire.Series[string(item)]
		if !ok {
			return nil, fmt.Errorf("%w: item %q missing from response", ErrMalformed, item)
		}
		points := make([]Point, 0, len(series))
		for _, wp := range series {
			if wp.Value < 0 || wp.Value > 100 {
				return nil, fmt.Errorf("%w: value %.2f out of range for %q", ErrMalformed, wp.Value, item)
			}
			date, err := time.Parse("2006-01-02", wp.Date)
			if err != nil {
				return nil, fmt.Errorf("%w: bad date %q", ErrMalformed, wp.Date)
			}
			points = append(points, Point{Date: date, Value: wp.Value})
		}
		out[item] = points
	}

	if out.Empty() {
		return out, nil // all-zero groups are the caller's problem, not malformed
	}

	// The group maximum is pinned at 100 by the scaling contract.
	var max float64
	for _, item := range group.Items {
		if m := out.Max(item); m > max {
			max = m
		}
	}
	if max != 100 {
		return nil, fmt.Errorf("%w: group max %.2f, want 100", ErrMalformed, max)
	}

	return out, nil
}
