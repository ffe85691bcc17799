package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/httputil"
	"github.com/wonny/tickerflow/pkg/logger"
)

// DefaultYahooBaseURL is the public chart API host
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider fetches daily bars from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo chart API 호출은 여기서만
type YahooProvider struct {
	httpClient *httputil.Client
	baseURL    string
	logger     *logger.Logger
}

// NewYahooProvider creates a provider. Empty baseURL uses DefaultYahooBaseURL.
func NewYahooProvider(httpClient *httputil.Client, baseURL string, log *logger.Logger) *YahooProvider {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     log.WithField("module", "provider.yahoo"),
	}
}

// Name returns the provider name
func (p *YahooProvider) Name() string { return "yahoo" }

// yahooChart is the response structure from the chart API.
// Quote arrays hold JSON null for missing values.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the daily series for symbol over rng.
// No bars in range yields an empty series, not an error.
func (p *YahooProvider) Fetch(ctx context.Context, symbol string, rng contracts.DateRange) (*contracts.DataSeries, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=history",
		p.baseURL,
		url.PathEscape(symbol),
		rng.From.Unix(),
		rng.To.AddDate(0, 0, 1).Unix(),
	)

	body, err := p.httpClient.GetBody(ctx, u)
	if err != nil {
		// Yahoo answers unknown symbols with 404 and a chart.error body
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: symbol not found", contracts.ErrFetch, symbol)
		}
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrFetch, symbol, err)
	}

	rows, err := parseYahooChart(body, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrFetch, symbol, err)
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(rows),
	}).Debug("Fetched chart")

	return contracts.NewSeries(symbol, rows), nil
}

// parseYahooChart converts a chart response into rows inside rng.
// Bars with every price null (holidays) are dropped; partial nulls stay as NaN.
func parseYahooChart(body []byte, rng contracts.DateRange) ([]contracts.Row, error) {
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error: %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return []contracts.Row{}, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return []contracts.Row{}, nil
	}
	quote := result.Indicators.Quote[0]

	rows := make([]contracts.Row, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		r := contracts.Row{
			// exchange-local trading day
			Date:   time.Unix(ts+result.Meta.GMTOffset, 0).UTC().Truncate(24 * time.Hour),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  at(quote.Close, i),
			Volume: at(quote.Volume, i),
		}
		if contracts.IsNull(r.Open) && contracts.IsNull(r.High) && contracts.IsNull(r.Low) && contracts.IsNull(r.Close) {
			continue
		}
		if !rng.Contains(r.Date) {
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return contracts.Null()
	}
	return *values[i]
}
