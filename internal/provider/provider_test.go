package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/config"
	"github.com/wonny/tickerflow/pkg/httputil"
	"github.com/wonny/tickerflow/pkg/logger"
	"github.com/wonny/tickerflow/pkg/redis"
)

func testHTTPClient() *httputil.Client {
	return httputil.New(config.ProviderConfig{RateLimit: 100, Timeout: 5 * time.Second}, logger.NewNop()).
		WithRetry(1, time.Millisecond)
}

func jan(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// B3 bars are stamped at 10:00 local (UTC-3)
func b3Stamp(d int) int64 {
	return jan(d).Add(13 * time.Hour).Unix()
}

func TestYahooProvider_Fetch(t *testing.T) {
	body := fmt.Sprintf(`{"chart":{"result":[{
		"meta":{"gmtoffset":-10800},
		"timestamp":[%d,%d,%d,%d],
		"indicators":{"quote":[{
			"open":  [36.5, null, 37.0, 37.5],
			"high":  [37.1, null, 37.4, 38.0],
			"low":   [36.0, null, 36.8, 37.2],
			"close": [36.9, null, 37.2, 37.9],
			"volume":[1000, null, null, 3000]
		}]}
	}],"error":null}}`, b3Stamp(15), b3Stamp(16), b3Stamp(17), b3Stamp(18))

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	p := NewYahooProvider(testHTTPClient(), server.URL, logger.NewNop())
	series, err := p.Fetch(context.Background(), "PETR4.SA", contracts.NewDateRange(jan(15), jan(17)))
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/PETR4.SA", gotPath)
	assert.Equal(t, "yahoo", p.Name())
	require.Equal(t, 2, series.Len(), "holiday bar dropped, 18th out of range")
	assert.Equal(t, jan(15), series.Rows[0].Date)
	assert.Equal(t, 36.9, series.Rows[0].Close)
	assert.Equal(t, jan(17), series.Rows[1].Date)
	assert.True(t, contracts.IsNull(series.Rows[1].Volume))
}

func TestYahooProvider_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{},"indicators":{"quote":[{}]}}],"error":null}}`))
	}))
	defer server.Close()

	p := NewYahooProvider(testHTTPClient(), server.URL, logger.NewNop())
	series, err := p.Fetch(context.Background(), "NEW3.SA", contracts.NewDateRange(jan(1), jan(7)))
	require.NoError(t, err)
	assert.True(t, series.IsEmpty())
}

func TestYahooProvider_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer server.Close()

	p := NewYahooProvider(testHTTPClient(), server.URL, logger.NewNop())
	_, err := p.Fetch(context.Background(), "GONE3.SA", contracts.NewDateRange(jan(1), jan(7)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrFetch))
	assert.Contains(t, err.Error(), "symbol not found")
}

func TestParseYahooChart_APIError(t *testing.T) {
	_, err := parseYahooChart([]byte(`{"chart":{"result":null,"error":{"code":"Bad","description":"boom"}}}`),
		contracts.NewDateRange(jan(1), jan(2)))
	assert.EqualError(t, err, "chart api error: Bad: boom")

	_, err = parseYahooChart([]byte(`not json`), contracts.NewDateRange(jan(1), jan(2)))
	assert.Error(t, err)
}

const naverPage = `<html><body>
<table class="type2">
<tr><th>날짜</th><th>종가</th><th>전일비</th><th>시가</th><th>고가</th><th>저가</th><th>거래량</th></tr>
<tr><td colspan="7"></td></tr>
<tr><td><span>%s</span></td><td>72,500</td><td>500</td><td>72,000</td><td>73,000</td><td>71,800</td><td>1,000,000</td></tr>
<tr><td><span>%s</span></td><td>72,000</td><td>300</td><td>71,700</td><td>72,300</td><td>71,500</td><td>-</td></tr>
</table></body></html>`

func TestParseNaverDaily(t *testing.T) {
	rows, err := parseNaverDaily([]byte(fmt.Sprintf(naverPage, "2024.01.16", "2024.01.15")))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, jan(16), rows[0].Date)
	assert.Equal(t, 72500.0, rows[0].Close)
	assert.Equal(t, 72000.0, rows[0].Open)
	assert.Equal(t, 73000.0, rows[0].High)
	assert.Equal(t, 71800.0, rows[0].Low)
	assert.Equal(t, 1000000.0, rows[0].Volume)
	assert.True(t, contracts.IsNull(rows[1].Volume))
}

func TestNaverProvider_Paginates(t *testing.T) {
	pages := map[string]string{
		"1": fmt.Sprintf(naverPage, "2024.01.16", "2024.01.15"),
		"2": fmt.Sprintf(naverPage, "2024.01.12", "2024.01.11"),
		"3": fmt.Sprintf(naverPage, "2024.01.10", "2024.01.09"),
	}
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/sise_day.naver", r.URL.Path)
		assert.Equal(t, "005930", r.URL.Query().Get("code"))
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		_, _ = w.Write([]byte(pages[page]))
	}))
	defer server.Close()

	p := NewNaverProvider(testHTTPClient(), server.URL, logger.NewNop())
	series, err := p.Fetch(context.Background(), "005930", contracts.NewDateRange(jan(11), jan(16)))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, requested, "stops once a page reaches the range start")
	require.Equal(t, 4, series.Len())
	assert.Equal(t, jan(11), series.Rows[0].Date, "oldest first")
	assert.Equal(t, jan(16), series.Rows[3].Date)
}

func TestNaverProvider_StopsOnRepeatedPage(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(fmt.Sprintf(naverPage, "2024.01.16", "2024.01.15")))
	}))
	defer server.Close()

	p := NewNaverProvider(testHTTPClient(), server.URL, logger.NewNop())
	series, err := p.Fetch(context.Background(), "005930", contracts.NewDateRange(jan(1), jan(16)))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, series.Len())
}

func TestNaverProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewNaverProvider(testHTTPClient(), server.URL, logger.NewNop())
	_, err := p.Fetch(context.Background(), "005930", contracts.NewDateRange(jan(1), jan(16)))
	assert.True(t, errors.Is(err, contracts.ErrFetch))
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider().
		Set(contracts.NewSeries("A", []contracts.Row{{Date: jan(1), Open: 1, Close: 2}, {Date: jan(9), Open: 2, Close: 3}})).
		FailWith("B", errors.New("down")).
		FailTimes("C", 1)
	ctx := context.Background()
	rng := contracts.NewDateRange(jan(1), jan(7))

	a, err := p.Fetch(ctx, "A", rng)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len(), "restricted to range")

	_, err = p.Fetch(ctx, "B", rng)
	assert.True(t, errors.Is(err, contracts.ErrFetch))

	_, err = p.Fetch(ctx, "C", rng)
	assert.Error(t, err)
	c, err := p.Fetch(ctx, "C", rng)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	assert.Equal(t, 2, p.Calls("C"))
	assert.Equal(t, "static", p.Name())
}

func TestSynthetic_Deterministic(t *testing.T) {
	rng := contracts.NewDateRange(jan(1), jan(31))
	a := Synthetic("PETR4.SA", rng)
	b := Synthetic("PETR4.SA", rng)
	c := Synthetic("VALE3.SA", rng)

	assert.Equal(t, a.Rows, b.Rows)
	assert.NotEqual(t, a.Rows[0].Open, c.Rows[0].Open)
	assert.Equal(t, 23, a.Len(), "weekdays in January 2024")
	for _, r := range a.Rows {
		assert.True(t, r.Priced())
		assert.Greater(t, r.Open, 0.0)
	}
}

func TestCachedProvider_DisabledIsPassThrough(t *testing.T) {
	inner := NewStaticProvider().Set(contracts.NewSeries("A", []contracts.Row{{Date: jan(2), Open: 1, Close: 1}}))
	p := NewCachedProvider(inner, redis.NewCache(redis.Disabled(), "test"), 0, logger.NewNop())
	rng := contracts.NewDateRange(jan(1), jan(7))

	for i := 0; i < 2; i++ {
		s, err := p.Fetch(context.Background(), "A", rng)
		require.NoError(t, err)
		assert.Equal(t, 1, s.Len())
	}
	assert.Equal(t, 2, inner.Calls("A"))
	assert.Equal(t, "static", p.Name())
	assert.Equal(t, redis.TTLDaily, p.ttl)
}

func TestCachedProvider_TTLForOpenRange(t *testing.T) {
	p := NewCachedProvider(NewStaticProvider(), redis.NewCache(redis.Disabled(), "test"), 0, logger.NewNop())
	p.now = func() time.Time { return jan(7).Add(15 * time.Hour) }

	tests := []struct {
		name string
		rng  contracts.DateRange
		want time.Duration
	}{
		{"closed range", contracts.NewDateRange(jan(1), jan(6)), redis.TTLDaily},
		{"ends today", contracts.NewDateRange(jan(1), jan(7)), redis.TTLShort},
		{"ends in future", contracts.NewDateRange(jan(1), jan(9)), redis.TTLShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ttlFor(tt.rng))
		})
	}

	short := NewCachedProvider(NewStaticProvider(), redis.NewCache(redis.Disabled(), "test"), time.Minute, logger.NewNop())
	short.now = p.now
	assert.Equal(t, time.Minute, short.ttlFor(contracts.NewDateRange(jan(1), jan(7))))
}

func TestCachedRows_RoundTripNulls(t *testing.T) {
	rows := []contracts.Row{{Date: jan(2), Open: 1.5, High: contracts.Null(), Low: 1, Close: 2, Volume: contracts.Null()}}
	back := fromCached(toCached(rows))

	require.Len(t, back, 1)
	assert.Equal(t, 1.5, back[0].Open)
	assert.True(t, contracts.IsNull(back[0].High))
	assert.True(t, contracts.IsNull(back[0].Volume))
}

func TestNew_Factory(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderConfig{Name: "yahoo", RateLimit: 1}}
	p, err := New(cfg, redis.Disabled(), logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Name())

	cfg.Provider.Name = "naver"
	p, err = New(cfg, nil, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "naver", p.Name())

	cfg.Provider.Name = "bloomberg"
	_, err = New(cfg, nil, logger.NewNop())
	assert.True(t, err != nil && strings.Contains(err.Error(), "bloomberg"))
}
