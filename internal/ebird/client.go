// Package ebird is the upstream eBird API v2 client: token auth, per-URL TTL
// response cache, in-flight coalescing, rate limiting, retry, and a circuit
// breaker around every fetch.
package ebird

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/observability"
	"github.com/featherline/rarity-mapper/internal/resilience"
)

const (
	// DefaultBaseURL is the public eBird API v2 root.
	DefaultBaseURL = "https://api.ebird.org/v2"

	// DefaultCacheTTL matches the edge cache window for observation data.
	DefaultCacheTTL = 15 * time.Minute

	// MaxGeoDistKm caps the radius of nearby-observation queries.
	MaxGeoDistKm = 50

	userAgent = "rarity-mapper"
)

// Client fetches observation and region reference data from eBird.
type Client struct {
	baseURL  string
	apiKey   string
	hc       *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	retryCfg resilience.RetryConfig
	clock    clockwork.Clock
	cache    *responseCache
	group    singleflight.Group
	metrics  *observability.Metrics
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithRateLimit sets the requests-per-second rate limit for eBird calls.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCacheTTL overrides the response cache window. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache.ttl = ttl }
}

// WithClock injects a clock for cache expiry. Tests use a fake clock.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clk
		c.cache.clock = clk
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRetryConfig overrides the retry policy for upstream fetches.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// NewClient creates an eBird client. baseURL falls back to DefaultBaseURL
// when empty; apiKey is sent on every request as X-eBirdApiToken.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	clk := clockwork.NewRealClock()
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 5),
		clock:   clk,
		cache:   newResponseCache(DefaultCacheTTL, clk),
		retryCfg: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.25,
			OnRetry:        resilience.RetryLogger("ebird", "fetch"),
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ebird",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Region is one entry of the subnational region reference list. eBird has
// served the code and name under two field spellings over time.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts {code,name}, {regionCode,regionName}, and bare
// string entries.
func (r *Region) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.Code, r.Name = s, s
		return nil
	}
	var raw struct {
		Code       string `json:"code"`
		Name       string `json:"name"`
		RegionCode string `json:"regionCode"`
		RegionName string `json:"regionName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Code = raw.Code
	if r.Code == "" {
		r.Code = raw.RegionCode
	}
	r.Name = raw.Name
	if r.Name == "" {
		r.Name = raw.RegionName
	}
	if r.Name == "" {
		r.Name = r.Code
	}
	return nil
}

// Regions lists the subnational1 regions of a country, dropping entries with
// no usable code.
func (c *Client) Regions(ctx context.Context, country string) ([]Region, error) {
	if country == "" {
		country = "US"
	}
	params := url.Values{"fmt": {"json"}}
	body, err := c.get(ctx, "/ref/region/list/subnational1/"+strings.ToUpper(country), params)
	if err != nil {
		return nil, err
	}
	var regions []Region
	if err := json.Unmarshal(body, &regions); err != nil {
		return nil, eris.Wrap(err, "ebird: parse region list")
	}
	out := regions[:0]
	for _, r := range regions {
		if r.Code != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// RecentNotable fetches the notable observations of a region over the last
// back days. detail is the eBird detail level, "full" or "simple".
func (c *Client) RecentNotable(ctx context.Context, region string, back int, detail string) ([]model.RawObservation, error) {
	if detail == "" {
		detail = "full"
	}
	params := url.Values{
		"detail": {detail},
		"back":   {strconv.Itoa(back)},
	}
	body, err := c.get(ctx, "/data/obs/"+strings.ToUpper(region)+"/recent/notable", params)
	if err != nil {
		return nil, err
	}
	return decodeObservations(body)
}

// RecentNotableGeo fetches notable observations within distKm kilometers of
// a point. The radius is capped at MaxGeoDistKm.
func (c *Client) RecentNotableGeo(ctx context.Context, lat, lng float64, distKm, back int) ([]model.RawObservation, error) {
	if distKm <= 0 || distKm > MaxGeoDistKm {
		distKm = MaxGeoDistKm
	}
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng":    {strconv.FormatFloat(lng, 'f', -1, 64)},
		"dist":   {strconv.Itoa(distKm)},
		"detail": {"full"},
		"back":   {strconv.Itoa(back)},
	}
	body, err := c.get(ctx, "/data/obs/geo/recent/notable", params)
	if err != nil {
		return nil, err
	}
	return decodeObservations(body)
}

func decodeObservations(body []byte) ([]model.RawObservation, error) {
	var obs []model.RawObservation
	if err := json.Unmarshal(body, &obs); err != nil {
		return nil, eris.Wrap(err, "ebird: parse observations")
	}
	return obs, nil
}

// get performs a cached, coalesced, rate-limited GET against the eBird API.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	if body, ok := c.cache.lookup(reqURL); ok {
		c.metrics.CacheHit("ebird")
		return body, nil
	}
	c.metrics.CacheMiss("ebird")

	v, err, _ := c.group.Do(reqURL, func() (any, error) {
		// Losers of the singleflight race still get the fresh body.
		if body, ok := c.cache.lookup(reqURL); ok {
			return body, nil
		}
		body, err := c.fetch(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		c.cache.store(reqURL, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ebird: rate limit")
	}

	start := c.clock.Now()
	out, err := c.breaker.Execute(func() (any, error) {
		return resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) ([]byte, error) {
			return c.doOnce(ctx, reqURL)
		})
	})
	c.metrics.UpstreamDuration("ebird", c.clock.Since(start).Seconds())

	switch {
	case err == nil:
		c.metrics.UpstreamRequest("ebird", "ok")
		return out.([]byte), nil
	case eris.Is(err, gobreaker.ErrOpenState) || eris.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.UpstreamRequest("ebird", "open")
		zap.L().Warn("ebird circuit open", zap.String("url", reqURL))
		return nil, eris.Wrap(err, "ebird: circuit open")
	default:
		c.metrics.UpstreamRequest("ebird", "error")
		return nil, err
	}
}

func (c *Client) doOnce(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ebird: build request")
	}
	req.Header.Set("X-eBirdApiToken", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ebird: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("ebird: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ebird: read body")
	}
	return body, nil
}

// ClampBack parses a raw back-window parameter, applying the default when it
// is missing or unparseable and clamping the result to [1, max].
func ClampBack(raw string, def, max int) int {
	back := def
	if raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n != 0 {
			back = n
		}
	}
	if back < 1 {
		back = 1
	}
	if back > max {
		back = max
	}
	return back
}
