// Package collector keeps the price store current with daily bars.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BandSentinel/internal/logger"
	"BandSentinel/internal/metrics"
	"BandSentinel/internal/model"
	"BandSentinel/internal/store"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Bars  map[string][]model.Bar
	Err   map[string]error
	Calls map[string]int // code -> requested days of the last call

	Listings  []model.Company
	ListErr   error
	ListCalls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, code string, days int) ([]model.Bar, error) {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[code] = days
	if err := m.Err[code]; err != nil {
		return nil, err
	}
	bars := m.Bars[code]
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return append([]model.Bar(nil), bars...), nil
}

func (m *MockFetcher) FetchCompanies(_ context.Context) ([]model.Company, error) {
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]model.Company(nil), m.Listings...), nil
}

// Updater fetches bars for every listed company and upserts them.
type Updater struct {
	Fetcher  Fetcher
	Listing  ListingFetcher // optional
	Store    store.PriceStore
	Metrics  *metrics.Metrics // optional
	Backfill int              // bars to fetch when the store is empty

	log zerolog.Logger
}

// NewUpdater creates an Updater. m may be nil.
func NewUpdater(f Fetcher, s store.PriceStore, m *metrics.Metrics) *Updater {
	return &Updater{
		Fetcher:  f,
		Store:    s,
		Metrics:  m,
		Backfill: 400,
		log:      logger.Component("collector"),
	}
}

// Register stores the given companies. Entries without a code are resolved
// by name against the existing listing and skipped if unknown; code-only
// entries that are already listed are left as stored.
func (u *Updater) Register(ctx context.Context, companies []model.Company) ([]model.Company, error) {
	out := make([]model.Company, 0, len(companies))
	for _, c := range companies {
		if c.Code == "" {
			code, err := u.Store.ResolveCode(ctx, c.Name)
			if err != nil {
				u.log.Warn().Str("name", c.Name).Err(err).Msg("skipping watchlist entry")
				continue
			}
			c.Code = code
			out = append(out, c)
			continue
		}
		if c.Name == "" {
			// keep the listed name when the code is already known
			if _, err := u.Store.ResolveCode(ctx, c.Code); err == nil {
				out = append(out, c)
				continue
			}
			c.Name = c.Code
		}
		if err := u.Store.UpsertCompany(ctx, c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// RefreshListings downloads the company listing and upserts it, at most once
// per day: it does nothing when MAX(last_update) is already today.
func (u *Updater) RefreshListings(ctx context.Context, now time.Time) (int, error) {
	if u.Listing == nil {
		return 0, nil
	}
	today := model.Day(now)
	last, ok, err := u.Store.ListingUpdated(ctx)
	if err != nil {
		return 0, err
	}
	if ok && !last.Before(today) {
		u.log.Info().Str("last", last.Format(model.DateLayout)).Msg("company listing already current")
		return 0, nil
	}

	companies, err := u.Listing.FetchCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch listing: %w", err)
	}
	for i := range companies {
		companies[i].LastUpdate = today
	}
	n, err := u.Store.UpsertCompanies(ctx, companies)
	if err != nil {
		return 0, err
	}
	u.log.Info().Int("companies", n).Msg("company_info update completed")
	return n, nil
}

// recent reports whether last already covers now: it is today, or it is
// yesterday and the market has not opened yet.
func recent(last, now time.Time) bool {
	today := model.Day(now)
	if last.Equal(today) {
		return true
	}
	return last.Equal(today.AddDate(0, 0, -1)) && now.Hour() < 9
}

// ReadRecent fetches the bars missing since the newest stored date. It does
// nothing when the store is already current.
func (u *Updater) ReadRecent(ctx context.Context, now time.Time) (int, error) {
	last, ok, err := u.Store.LastDate(ctx, "")
	if err != nil {
		return 0, err
	}
	if !ok {
		u.log.Info().Int("days", u.Backfill).Msg("price store empty, backfilling")
		return u.ReadDays(ctx, u.Backfill)
	}
	if recent(last, now) {
		u.log.Info().Str("last", last.Format(model.DateLayout)).Msg("price store already current")
		return 0, nil
	}
	gap := int(model.Day(now).Sub(last).Hours() / 24)
	// calendar gap to trading days, plus slack for the boundaries
	return u.ReadDays(ctx, gap*5/7+2)
}

// ReadDays fetches the latest count bars of every listed company. A failed
// company is logged and skipped.
func (u *Updater) ReadDays(ctx context.Context, count int) (int, error) {
	companies, err := u.Store.Companies(ctx)
	if err != nil {
		return 0, err
	}
	total, failed := 0, 0
	for _, c := range companies {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := u.update(ctx, c, count)
		if err != nil {
			failed++
			if u.Metrics != nil {
				u.Metrics.FetchErrors.Inc()
			}
			u.log.Warn().Str("code", c.Code).Err(err).Msg("update failed")
			continue
		}
		total += n
	}
	if u.Metrics != nil {
		u.Metrics.BarsUpserted.Add(float64(total))
		u.Metrics.LastUpdate.SetToCurrentTime()
	}
	u.log.Info().Int("companies", len(companies)).Int("failed", failed).Int("bars", total).Msg("daily_price update completed")
	return total, nil
}

func (u *Updater) update(ctx context.Context, c model.Company, count int) (int, error) {
	bars, err := u.Fetcher.FetchDailyBars(ctx, c.Code, count)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(bars) == 0 {
		u.log.Debug().Str("code", c.Code).Msg("no bars returned")
		return 0, nil
	}

	prev, err := u.previousClose(ctx, c.Code, bars[0].Date)
	if err != nil {
		return 0, err
	}
	FillChangePct(prev, bars)

	return u.Store.UpsertBars(ctx, c.Code, bars)
}

// previousClose returns the stored close before day, or 0 if none is stored.
func (u *Updater) previousClose(ctx context.Context, code string, day time.Time) (float64, error) {
	ps, err := u.Store.GetPrice(ctx, code, day.AddDate(0, 0, -14), day.AddDate(0, 0, -1))
	if errors.Is(err, store.ErrEmptyRange) || errors.Is(err, store.ErrUnknownInstrument) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ps.Bars[ps.Len()-1].Close, nil
}

// FillChangePct sets each bar's close-over-previous-close percent, rounded to
// two decimals. prev is the close before bars[0]; 0 leaves bars[0] at 0.
func FillChangePct(prev float64, bars []model.Bar) {
	for i := range bars {
		if prev > 0 {
			pct := decimal.NewFromFloat(bars[i].Close).
				Div(decimal.NewFromFloat(prev)).
				Sub(decimal.NewFromInt(1)).
				Mul(decimal.NewFromInt(100)).
				Round(2)
			bars[i].ChangePct = pct.InexactFloat64()
		} else {
			bars[i].ChangePct = 0
		}
		prev = bars[i].Close
	}
}
