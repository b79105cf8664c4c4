// Package resolver implements the ranked fallback ladder for county-scoped
// notable observations. County region codes are under-populated upstream, so
// an empty county query falls back to a county-filtered state query, then to
// the state-wide result, then to a geographic radius query. The strategy that
// produced the data travels with the result so callers can disclose the
// approximation.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/featherline/rarity-mapper/internal/fips"
	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/observability"
)

// Terminal strategies, in order of preference.
const (
	StrategyCountyRegion    = "county-region"
	StrategyStateFilter     = "state-filter"
	StrategyStateWide       = "state-wide-fallback"
	StrategyGeoCountyFilter = "geo-county-filter"
	StrategyGeoBroad        = "geo-broad-fallback"
)

// DefaultGeoDistKm is the radius of the geographic fallback query.
const DefaultGeoDistKm = 50

// Fetcher is the slice of the upstream client the resolver needs.
type Fetcher interface {
	RecentNotable(ctx context.Context, region string, back int, detail string) ([]model.RawObservation, error)
	RecentNotableGeo(ctx context.Context, lat, lng float64, distKm, back int) ([]model.RawObservation, error)
}

// Query names a county either by region code or by point. Back is the
// days-back window, already clamped by the caller.
type Query struct {
	Region fips.Region
	Lat    float64
	Lng    float64
	Back   int
}

// Result is the best-available observation set for a county.
type Result struct {
	CountyRegion string
	FIPS5        string
	StateFIPS    string
	Back         int
	SourceRegion string
	Strategy     string
	Observations []model.RawObservation
}

// Resolver runs the fallback ladder against a Fetcher.
type Resolver struct {
	fetcher   Fetcher
	geoDistKm int
	metrics   *observability.Metrics
}

// Option configures the resolver.
type Option func(*Resolver)

// WithGeoDistKm overrides the geographic fallback radius.
func WithGeoDistKm(km int) Option {
	return func(r *Resolver) { r.geoDistKm = km }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a resolver over the given fetcher.
func New(f Fetcher, opts ...Option) *Resolver {
	r := &Resolver{fetcher: f, geoDistKm: DefaultGeoDistKm}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CountyNotables resolves the notable observations of one county. The county
// and state queries fire in parallel to bound latency; the geographic query
// runs only when both came back empty. A rung that fails is treated as empty
// for ranking purposes; the call errors only when every rung failed.
func (r *Resolver) CountyNotables(ctx context.Context, q Query) (*Result, error) {
	if q.Region.CountyRegion == "" {
		return nil, eris.New("resolver: query has no county region")
	}

	stateRegion := fips.StateRegion(q.Region.StateFIPS)

	var countyObs, stateObs []model.RawObservation
	var countyErr, stateErr error

	// Both fetches always run to completion; a failed rung must not cancel
	// its sibling, so errors are captured rather than returned to the group.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		countyObs, countyErr = r.fetcher.RecentNotable(gctx, q.Region.CountyRegion, q.Back, "full")
		return nil
	})
	g.Go(func() error {
		if stateRegion == "" {
			return nil
		}
		stateObs, stateErr = r.fetcher.RecentNotable(gctx, stateRegion, q.Back, "full")
		return nil
	})
	_ = g.Wait()

	if countyErr != nil {
		zap.L().Warn("county query failed", zap.String("region", q.Region.CountyRegion), zap.Error(countyErr))
		countyObs = nil
	}
	if stateErr != nil {
		zap.L().Warn("state query failed", zap.String("region", stateRegion), zap.Error(stateErr))
		stateObs = nil
	}

	res := &Result{
		CountyRegion: q.Region.CountyRegion,
		FIPS5:        q.Region.FIPS5,
		StateFIPS:    q.Region.StateFIPS,
		Back:         q.Back,
		SourceRegion: q.Region.CountyRegion,
		Strategy:     StrategyCountyRegion,
	}

	switch {
	case len(countyObs) > 0:
		res.Observations = countyObs
	case len(stateObs) > 0:
		filtered := filterByCounty(stateObs, q.Region.CountyRegion)
		if len(filtered) > 0 {
			res.Observations = filtered
			res.SourceRegion = stateRegion + "→" + q.Region.CountyRegion
			res.Strategy = StrategyStateFilter
		} else {
			res.Observations = stateObs
			res.SourceRegion = stateRegion
			res.Strategy = StrategyStateWide
		}
	}

	var geoErr error
	if len(res.Observations) == 0 {
		geoErr = r.geoFallback(ctx, q, res)
	}

	// Every rung threw: surface the failure instead of masking it as an
	// empty county.
	if len(res.Observations) == 0 && countyErr != nil && (stateRegion == "" || stateErr != nil) && geoErr != nil {
		return nil, eris.Wrap(geoErr, "resolver: all strategies failed")
	}

	r.metrics.FallbackStrategy(res.Strategy)
	return res, nil
}

func (r *Resolver) geoFallback(ctx context.Context, q Query, res *Result) error {
	obs, err := r.fetcher.RecentNotableGeo(ctx, q.Lat, q.Lng, r.geoDistKm, q.Back)
	if err != nil {
		zap.L().Warn("geo fallback failed", zap.Float64("lat", q.Lat), zap.Float64("lng", q.Lng), zap.Error(err))
		return err
	}

	res.SourceRegion = fmt.Sprintf("geo:%.3f,%.3f", q.Lat, q.Lng)
	filtered := filterByCounty(obs, q.Region.CountyRegion)
	if len(filtered) > 0 {
		res.Observations = filtered
		res.Strategy = StrategyGeoCountyFilter
	} else {
		// Empty is a valid outcome; "no rarities currently" is common.
		res.Observations = obs
		res.Strategy = StrategyGeoBroad
	}
	return nil
}

func filterByCounty(obs []model.RawObservation, countyRegion string) []model.RawObservation {
	var out []model.RawObservation
	for _, o := range obs {
		if strings.EqualFold(strings.TrimSpace(o.Subnational2Code), countyRegion) {
			out = append(out, o)
		}
	}
	return out
}
