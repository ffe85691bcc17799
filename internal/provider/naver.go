package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/httputil"
	"github.com/wonny/tickerflow/pkg/logger"
)

// DefaultNaverBaseURL is the Naver Finance host
const DefaultNaverBaseURL = "https://finance.naver.com"

// naverMaxPages bounds pagination (10 sessions per page)
const naverMaxPages = 60

var naverDateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// NaverProvider scrapes the Naver Finance daily price table
// ⭐ SSOT: Naver Finance 일별 시세 호출은 여기서만
type NaverProvider struct {
	httpClient *httputil.Client
	baseURL    string
	logger     *logger.Logger
}

// NewNaverProvider creates a provider. Empty baseURL uses DefaultNaverBaseURL.
func NewNaverProvider(httpClient *httputil.Client, baseURL string, log *logger.Logger) *NaverProvider {
	if baseURL == "" {
		baseURL = DefaultNaverBaseURL
	}
	httpClient.WithHeader("Referer", DefaultNaverBaseURL+"/")
	return &NaverProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     log.WithField("module", "provider.naver"),
	}
}

// Name returns the provider name
func (p *NaverProvider) Name() string { return "naver" }

// Fetch pages back through sise_day until the range start is passed
func (p *NaverProvider) Fetch(ctx context.Context, symbol string, rng contracts.DateRange) (*contracts.DataSeries, error) {
	var rows []contracts.Row
	var prevFirst time.Time

	for page := 1; page <= naverMaxPages; page++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrFetch, symbol, ctx.Err())
		default:
		}

		params := url.Values{}
		params.Set("code", symbol)
		params.Set("page", strconv.Itoa(page))

		body, err := p.httpClient.GetBody(ctx, p.baseURL+"/item/sise_day.naver?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrFetch, symbol, err)
		}

		pageRows, err := parseNaverDaily(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrFetch, symbol, err)
		}

		// 마지막 페이지 이후에는 같은 페이지가 반복됨
		if len(pageRows) == 0 || pageRows[0].Date.Equal(prevFirst) {
			break
		}
		prevFirst = pageRows[0].Date

		oldest := pageRows[len(pageRows)-1].Date
		for _, r := range pageRows {
			if rng.Contains(r.Date) {
				rows = append(rows, r)
			}
		}

		if !oldest.After(rng.From) {
			break
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(rows),
	}).Debug("Fetched daily prices")

	return contracts.NewSeries(symbol, rows), nil
}

// parseNaverDaily parses one sise_day page, newest row first.
// 컬럼: 날짜 | 종가 | 전일비 | 시가 | 고가 | 저가 | 거래량
func parseNaverDaily(html []byte) ([]contracts.Row, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []contracts.Row
	doc.Find("table.type2 tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 7 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !naverDateRe.MatchString(dateText) {
			return
		}
		date, err := time.Parse("2006.01.02", dateText)
		if err != nil {
			return
		}

		rows = append(rows, contracts.Row{
			Date:   date,
			Close:  parseNaverNumber(cells.Eq(1).Text()),
			Open:   parseNaverNumber(cells.Eq(3).Text()),
			High:   parseNaverNumber(cells.Eq(4).Text()),
			Low:    parseNaverNumber(cells.Eq(5).Text()),
			Volume: parseNaverNumber(cells.Eq(6).Text()),
		})
	})

	return rows, nil
}

// parseNaverNumber parses "72,300"; blanks and dashes are null
func parseNaverNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return contracts.Null()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return contracts.Null()
	}
	return v
}
