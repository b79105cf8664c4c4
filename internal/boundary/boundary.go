// Package boundary fetches county geometry: per-state low-resolution GeoJSON
// from the Pages CDN and single-county high-resolution polygons from TIGERweb.
package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/fips"
	"github.com/featherline/rarity-mapper/internal/observability"
	"github.com/featherline/rarity-mapper/internal/resilience"
)

const (
	// DefaultPagesBaseURL serves the pre-built per-state county GeoJSON.
	DefaultPagesBaseURL = "https://mobile-rarity-mapper.pages.dev"

	// DefaultTigerURL is the TIGERweb county layer query endpoint.
	DefaultTigerURL = "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb/State_County/MapServer/1/query"

	// DefaultCacheTTL matches the edge cache window for boundary data.
	DefaultCacheTTL = 24 * time.Hour
)

// ErrHiResInFlight is returned when a high-resolution county load is already
// running. Callers drop the superseding request rather than queue it.
var ErrHiResInFlight = eris.New("boundary: high-res load already in flight")

// ErrCountyNotFound reports that the upstream source has no geometry for the
// requested county.
var ErrCountyNotFound = eris.New("boundary: county geometry not found")

// CountyFeature is one county polygon with the properties the Pages build
// attaches to it.
type CountyFeature struct {
	FIPS5    string
	Name     string
	Geometry geom.T
}

// StateCounties is the decoded low-resolution county set of one state.
type StateCounties struct {
	StateCode string
	Features  []CountyFeature
}

// Find returns the feature with the given five-digit FIPS code.
func (sc *StateCounties) Find(fips5 string) (CountyFeature, bool) {
	for _, f := range sc.Features {
		if f.FIPS5 == fips5 {
			return f, true
		}
	}
	return CountyFeature{}, false
}

// Client fetches and caches boundary geometry.
type Client struct {
	pagesBase string
	tigerURL  string
	hc        *http.Client
	clock     clockwork.Clock
	ttl       time.Duration
	retryCfg  resilience.RetryConfig
	metrics   *observability.Metrics

	mu            sync.Mutex
	stateCache    map[string]stateEntry
	hiResCache    map[string]hiResEntry
	hiResInFlight bool
}

type stateEntry struct {
	counties *StateCounties
	expires  time.Time
}

type hiResEntry struct {
	geometry geom.T
	name     string
	expires  time.Time
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithClock injects a clock for cache expiry.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithCacheTTL overrides the geometry cache window. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a boundary client. Empty URLs fall back to the public
// defaults.
func NewClient(pagesBase, tigerURL string, opts ...Option) *Client {
	if pagesBase == "" {
		pagesBase = DefaultPagesBaseURL
	}
	if tigerURL == "" {
		tigerURL = DefaultTigerURL
	}
	c := &Client{
		pagesBase:  strings.TrimRight(pagesBase, "/"),
		tigerURL:   tigerURL,
		hc:         &http.Client{Timeout: 30 * time.Second},
		clock:      clockwork.NewRealClock(),
		ttl:        DefaultCacheTTL,
		stateCache: make(map[string]stateEntry),
		hiResCache: make(map[string]hiResEntry),
		retryCfg: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.25,
			OnRetry:        resilience.RetryLogger("boundary", "fetch"),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StateCounties fetches the low-resolution county set of a state, serving
// from cache within the TTL.
func (c *Client) StateCounties(ctx context.Context, stateCode string) (*StateCounties, error) {
	stateCode = strings.ToUpper(strings.TrimSpace(stateCode))
	if stateCode == "" {
		return nil, eris.New("boundary: empty state code")
	}

	c.mu.Lock()
	if e, ok := c.stateCache[stateCode]; ok && c.clock.Now().Before(e.expires) {
		c.mu.Unlock()
		c.metrics.CacheHit("boundary")
		return e.counties, nil
	}
	c.mu.Unlock()
	c.metrics.CacheMiss("boundary")

	body, err := c.fetch(ctx, "boundary", fmt.Sprintf("%s/data/counties/%s.json", c.pagesBase, stateCode))
	if err != nil {
		return nil, err
	}

	counties, err := decodeStateCounties(stateCode, body)
	if err != nil {
		return nil, err
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.stateCache[stateCode] = stateEntry{counties: counties, expires: c.clock.Now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return counties, nil
}

// CountyHiRes fetches the full-resolution geometry of one county from
// TIGERweb. Only one load runs at a time; a call arriving while another is in
// flight returns ErrHiResInFlight. Cached geometry is always served.
func (c *Client) CountyHiRes(ctx context.Context, region fips.Region) (geom.T, string, error) {
	if region.FIPS5 == "" {
		return nil, "", eris.New("boundary: region has no FIPS code")
	}

	c.mu.Lock()
	if e, ok := c.hiResCache[region.FIPS5]; ok && c.clock.Now().Before(e.expires) {
		c.mu.Unlock()
		c.metrics.CacheHit("tiger")
		return e.geometry, e.name, nil
	}
	if c.hiResInFlight {
		c.mu.Unlock()
		return nil, "", ErrHiResInFlight
	}
	c.hiResInFlight = true
	c.mu.Unlock()
	c.metrics.CacheMiss("tiger")

	defer func() {
		c.mu.Lock()
		c.hiResInFlight = false
		c.mu.Unlock()
	}()

	params := url.Values{
		"where":          {fmt.Sprintf("GEOID='%s'", region.FIPS5)},
		"outFields":      {"GEOID,NAME,STATE,COUNTY"},
		"returnGeometry": {"true"},
		"f":              {"geojson"},
	}
	body, err := c.fetch(ctx, "tiger", c.tigerURL+"?"+params.Encode())
	if err != nil {
		return nil, "", err
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, "", eris.Wrap(err, "boundary: parse tiger response")
	}
	if len(fc.Features) == 0 || fc.Features[0].Geometry == nil {
		return nil, "", eris.Wrapf(ErrCountyNotFound, "no geometry for %s", region.CountyRegion)
	}

	feat := fc.Features[0]
	name := ""
	if v, ok := feat.Properties["NAME"].(string); ok {
		name = v
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.hiResCache[region.FIPS5] = hiResEntry{
			geometry: feat.Geometry,
			name:     name,
			expires:  c.clock.Now().Add(c.ttl),
		}
		c.mu.Unlock()
	}
	return feat.Geometry, name, nil
}

func decodeStateCounties(stateCode string, body []byte) (*StateCounties, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, eris.Wrapf(err, "boundary: parse state geojson %s", stateCode)
	}

	out := &StateCounties{StateCode: stateCode, Features: make([]CountyFeature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		cf := CountyFeature{Geometry: f.Geometry}
		if v, ok := f.Properties["fips5"].(string); ok {
			cf.FIPS5 = v
		}
		if v, ok := f.Properties["name"].(string); ok {
			cf.Name = v
		}
		out.Features = append(out.Features, cf)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, service, reqURL string) ([]byte, error) {
	body, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) ([]byte, error) {
		return c.doOnce(ctx, reqURL)
	})
	if err != nil {
		c.metrics.UpstreamRequest(service, "error")
		zap.L().Warn("boundary fetch failed", zap.String("service", service), zap.String("url", reqURL), zap.Error(err))
		return nil, err
	}
	c.metrics.UpstreamRequest(service, "ok")
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("boundary: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: read body")
	}
	return body, nil
}
