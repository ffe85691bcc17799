package provider

import (
	"context"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
	"github.com/wonny/tickerflow/pkg/redis"
)

// CachedProvider caches non-empty responses of another provider in Redis
type CachedProvider struct {
	next   contracts.Provider
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewCachedProvider wraps next. A disabled redis client makes this a pass-through.
func NewCachedProvider(next contracts.Provider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedProvider{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithField("module", "provider.cache"),
		now:    time.Now,
	}
}

// Name returns the wrapped provider name
func (p *CachedProvider) Name() string { return p.next.Name() }

// cachedRow mirrors contracts.Row with nullable fields; JSON has no NaN
type cachedRow struct {
	Date   time.Time `json:"d"`
	Open   *float64  `json:"o"`
	High   *float64  `json:"h"`
	Low    *float64  `json:"l"`
	Close  *float64  `json:"c"`
	Volume *float64  `json:"v"`
}

// Fetch serves from cache when possible. Cache failures never fail the fetch.
func (p *CachedProvider) Fetch(ctx context.Context, symbol string, rng contracts.DateRange) (*contracts.DataSeries, error) {
	key := redis.SeriesKey(symbol, rng.From.Format(contracts.DateLayout), rng.To.Format(contracts.DateLayout))

	var cached []cachedRow
	found, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		p.logger.WithError(err).WithField("symbol", symbol).Warn("Cache read failed")
	}
	if found {
		p.logger.WithField("symbol", symbol).Debug("Cache hit")
		return contracts.NewSeries(symbol, fromCached(cached)), nil
	}

	series, err := p.next.Fetch(ctx, symbol, rng)
	if err != nil {
		return nil, err
	}

	if !series.IsEmpty() {
		if err := p.cache.Set(ctx, key, toCached(series.Rows), p.ttlFor(rng)); err != nil {
			p.logger.WithError(err).WithField("symbol", symbol).Warn("Cache write failed")
		}
	}

	return series, nil
}

// ttlFor keeps ranges that reach today short-lived: the last bar may still be intraday
func (p *CachedProvider) ttlFor(rng contracts.DateRange) time.Duration {
	today := p.now().Format(contracts.DateLayout)
	if rng.To.Format(contracts.DateLayout) >= today && p.ttl > redis.TTLShort {
		return redis.TTLShort
	}
	return p.ttl
}

func toCached(rows []contracts.Row) []cachedRow {
	out := make([]cachedRow, len(rows))
	for i, r := range rows {
		out[i] = cachedRow{
			Date:   r.Date,
			Open:   nullable(r.Open),
			High:   nullable(r.High),
			Low:    nullable(r.Low),
			Close:  nullable(r.Close),
			Volume: nullable(r.Volume),
		}
	}
	return out
}

func fromCached(rows []cachedRow) []contracts.Row {
	out := make([]contracts.Row, len(rows))
	for i, r := range rows {
		out[i] = contracts.Row{
			Date:   r.Date,
			Open:   deref(r.Open),
			High:   deref(r.High),
			Low:    deref(r.Low),
			Close:  deref(r.Close),
			Volume: deref(r.Volume),
		}
	}
	return out
}

func nullable(v float64) *float64 {
	if contracts.IsNull(v) {
		return nil
	}
	return &v
}

func deref(v *float64) float64 {
	if v == nil {
		return contracts.Null()
	}
	return *v
}
