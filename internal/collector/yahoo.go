package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"BandSentinel/internal/model"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooOptions configures a YahooFetcher.
type YahooOptions struct {
	Proxy             string
	Suffix            string // appended to numeric listing codes, e.g. ".KS"
	RequestsPerSecond int
	Timeout           time.Duration
	MaxRetries        uint64
	BaseURL           string
}

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	Client     *http.Client
	Limiter    *rate.Limiter
	Suffix     string
	SymbolMap  map[string]string // listing code to Yahoo ticker, overrides Suffix
	BaseURL    string
	MaxRetries uint64
}

// NewYahooFetcher creates a rate-limited Yahoo fetcher with optional proxy support.
func NewYahooFetcher(opts YahooOptions) *YahooFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseURL == "" {
		opts.BaseURL = yahooChartURL
	}
	return &YahooFetcher{
		Client:     newHTTPClient(opts.Proxy, opts.Timeout),
		Limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		Suffix:     opts.Suffix,
		SymbolMap:  map[string]string{},
		BaseURL:    opts.BaseURL,
		MaxRetries: opts.MaxRetries,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(code string) string {
	if mapped, ok := f.SymbolMap[code]; ok {
		return mapped
	}
	if f.Suffix != "" && !strings.Contains(code, ".") {
		return code + f.Suffix
	}
	return code
}

// yahooChart is the response structure from Yahoo Finance chart API.
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

func at(v []*float64, i int) float64 {
	if i >= len(v) || v[i] == nil {
		return 0
	}
	return *v[i]
}

// chartRange picks the smallest Yahoo range covering days trading days.
func chartRange(days int) string {
	switch {
	case days <= 20:
		return "1mo"
	case days <= 60:
		return "3mo"
	case days <= 120:
		return "6mo"
	case days <= 250:
		return "1y"
	case days <= 500:
		return "2y"
	case days <= 1250:
		return "5y"
	default:
		return "max"
	}
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	u := fmt.Sprintf("%s%s?interval=1d&range=%s", f.BaseURL, url.PathEscape(f.yahooSymbol(code)), chartRange(days))
	body, err := getWithRetry(ctx, f.Client, f.Limiter, f.MaxRetries, "yahoo", u)
	if err != nil {
		return nil, err
	}
	bars, err := decodeChart(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", code, err)
	}
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// decodeChart converts a chart response into ascending daily bars, one per
// calendar day. Null rows (holidays, halted sessions) are skipped.
func decodeChart(body []byte) ([]model.Bar, error) {
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		b := model.Bar{
			// exchange-local calendar day
			Date:   model.Day(time.Unix(ts+result.Meta.GMTOffset, 0).UTC()),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  at(quote.Close, i),
			Volume: int64(at(quote.Volume, i)),
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 || b.High < b.Low {
			continue
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	// the live session can appear twice; keep the later row
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
