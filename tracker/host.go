// Package tracker keeps the recorded price history of held savings bonds in
// line with their accrual schedules.
//
// The Engine lists the holdings of the host application, builds the schedule of
// every bond it recognizes, compares it with the quotes the host already
// records, and writes only what is missing or different. Each symbol is
// processed at most once per process, and the engine ignores the portfolio
// update events caused by its own writes.
package tracker

import (
	"context"
	"time"

	"github.com/etnz/treasury"
	"github.com/shopspring/decimal"
)

// Account is an account of the host application.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Holding is a position held in an account.
type Holding struct {
	AccountID string          `json:"accountId"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Quote is a recorded daily price of a symbol.
type Quote struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Timestamp  time.Time       `json:"timestamp"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	AdjClose   decimal.Decimal `json:"adjclose"`
	Volume     decimal.Decimal `json:"volume"`
	Currency   string          `json:"currency"`
	DataSource string          `json:"dataSource"`
}

// Profile is the descriptive profile of an asset.
type Profile struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name,omitempty"`
	AssetClass    string `json:"assetClass,omitempty"`
	AssetSubClass string `json:"assetSubClass,omitempty"`
	Country       string `json:"country,omitempty"`
}

// Host is the application owning accounts, holdings, quotes and profiles.
//
// UpsertQuote may be called concurrently.
type Host interface {
	Accounts(ctx context.Context) ([]Account, error)
	Holdings(ctx context.Context, accountID string) ([]Holding, error)
	Quotes(ctx context.Context, symbol string) ([]Quote, error)
	Profile(ctx context.Context, symbol string) (Profile, error)
	UpdateProfile(ctx context.Context, p Profile) error
	UpsertQuote(ctx context.Context, q Quote) error
}

// Flusher is implemented by hosts that buffer writes. Flush is called at the
// end of every pass that wrote quotes or profiles.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Logger is the host's structured logger. *slog.Logger implements it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// SeriesSource looks up bond series. *catalog.Catalog implements it.
type SeriesSource interface {
	Series(ctx context.Context, id, bondType string) (treasury.Series, bool, error)
	Description(ctx context.Context, bondType string) (string, bool, error)
}
