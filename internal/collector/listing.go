package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"BandSentinel/internal/model"
)

// KRXListingURL is the KIND corporate list download restricted to the KOSPI
// market, which matches the ".KS" Yahoo suffix.
const KRXListingURL = "http://kind.krx.co.kr/corpgeneral/corpList.do?method=download&searchType=13&marketType=stockMkt"

// ListingOptions configures a KRXListingFetcher.
type ListingOptions struct {
	Proxy      string
	Timeout    time.Duration
	MaxRetries uint64
	URL        string
}

// KRXListingFetcher implements ListingFetcher over the KRX corporate list download.
type KRXListingFetcher struct {
	Client     *http.Client
	Limiter    *rate.Limiter
	URL        string
	MaxRetries uint64
}

// NewKRXListingFetcher creates a listing fetcher with optional proxy support.
func NewKRXListingFetcher(opts ListingOptions) *KRXListingFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.URL == "" {
		opts.URL = KRXListingURL
	}
	return &KRXListingFetcher{
		Client:     newHTTPClient(opts.Proxy, opts.Timeout),
		Limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		URL:        opts.URL,
		MaxRetries: opts.MaxRetries,
	}
}

func (f *KRXListingFetcher) FetchCompanies(ctx context.Context) ([]model.Company, error) {
	body, err := getWithRetry(ctx, f.Client, f.Limiter, f.MaxRetries, "krx", f.URL)
	if err != nil {
		return nil, err
	}
	return decodeListing(body)
}

// decodeListing reads the corpList download, an HTML table (EUC-KR unless
// already UTF-8) with 회사명 and 종목코드 columns. Numeric codes are
// zero-padded to six digits. Rows come back sorted by code.
func decodeListing(body []byte) ([]model.Company, error) {
	var r io.Reader = bytes.NewReader(body)
	if !utf8.Valid(body) {
		r = transform.NewReader(r, korean.EUCKR.NewDecoder())
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("krx parse: %w", err)
	}

	rows := tableRows(doc)
	nameCol, codeCol, header := -1, -1, -1
	for i, cells := range rows {
		for j, c := range cells {
			switch c {
			case "회사명":
				nameCol = j
			case "종목코드":
				codeCol = j
			}
		}
		if nameCol >= 0 && codeCol >= 0 {
			header = i
			break
		}
		nameCol, codeCol = -1, -1
	}
	if header < 0 {
		return nil, fmt.Errorf("krx: no 회사명/종목코드 header in listing")
	}

	seen := make(map[string]bool)
	var out []model.Company
	for _, cells := range rows[header+1:] {
		if len(cells) <= max(nameCol, codeCol) {
			continue
		}
		code, name := padCode(cells[codeCol]), cells[nameCol]
		if code == "" || name == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, model.Company{Code: code, Name: name})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("krx: empty listing")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func padCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || len(code) >= 6 {
		return code
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return code
		}
	}
	return strings.Repeat("0", 6-len(code)) + code
}

// tableRows collects the trimmed cell text of every table row.
func tableRows(n *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, strings.TrimSpace(nodeText(c)))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return rows
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
