package collector

import (
	"context"

	"BandSentinel/internal/model"
)

// Fetcher downloads daily bars for a listing code.
type Fetcher interface {
	// FetchDailyBars returns up to days most recent bars, ascending by date.
	FetchDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error)
	Name() string
}

// ListingFetcher downloads the currently listed companies.
type ListingFetcher interface {
	FetchCompanies(ctx context.Context) ([]model.Company, error)
}
