// Package store persists listings, daily bars and detected signals.
package store

import (
	"context"
	"errors"
	"time"

	"BandSentinel/internal/model"
)

var (
	// ErrUnknownInstrument is returned for a code or name with no listing and no bars.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrEmptyRange is returned when an instrument has no bars in the requested window.
	ErrEmptyRange = errors.New("no bars in range")
)

// PriceStore reads and writes daily bars.
type PriceStore interface {
	UpsertCompany(ctx context.Context, c model.Company) error
	UpsertCompanies(ctx context.Context, companies []model.Company) (int, error)
	// ListingUpdated reports when the listing was last refreshed.
	ListingUpdated(ctx context.Context) (time.Time, bool, error)
	Companies(ctx context.Context) ([]model.Company, error)
	ResolveCode(ctx context.Context, codeOrName string) (string, error)
	UpsertBars(ctx context.Context, code string, bars []model.Bar) (int, error)
	LastDate(ctx context.Context, code string) (time.Time, bool, error)
	// GetPrice returns the bars of code dated within [start, end], ascending.
	GetPrice(ctx context.Context, code string, start, end time.Time) (*model.PriceSeries, error)
}

// SignalRecorder persists detected signals.
type SignalRecorder interface {
	RecordSignals(ctx context.Context, code string, signals []model.Signal) error
	Close() error
}
