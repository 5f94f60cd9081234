// Package store defines the persistence interface for legislators, tickers,
// trades, and summary statistics, with an in-memory implementation for tests
// and one-shot runs and a Postgres implementation for deployments.
//
// Trade inserts are deduplicating: the composite uniqueness tuple (see
// models.Trade.DedupKey) is the sole concurrency-safety mechanism, so
// re-ingesting an overlapping batch is a no-op for rows already present.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/captrades/captrades/pkg/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// TradeFilter selects trades with typed parameters. Zero values mean
// "no constraint". Since is an exclusive lower bound and Until an inclusive
// upper bound on the transaction date, matching the rolling-window scope
// (today − window, today].
type TradeFilter struct {
	LegislatorID    int64
	TickerID        int64
	TickerSymbol    string
	NameContains    string // case-insensitive substring of the legislator's full name
	TransactionType string
	Since           time.Time
	Until           time.Time
	Limit           int
	Offset          int
}

// LegislatorFilter selects legislators for listing.
type LegislatorFilter struct {
	NameContains string
	TradedOnly   bool // only legislators with at least one transaction
	Limit        int
	Offset       int
}

// Store is the persistence interface consumed by the pipeline and the API.
type Store interface {
	// Legislators.
	UpsertLegislators(ctx context.Context, legislators []models.Legislator) error
	LegislatorByID(ctx context.Context, id int64) (*models.Legislator, error)
	Legislators(ctx context.Context, f LegislatorFilter) ([]models.Legislator, error)
	// MatchLegislator returns the first legislator whose full, first, or last
	// name contains any of the given tokens, case-insensitively.
	MatchLegislator(ctx context.Context, tokens []string) (*models.Legislator, error)
	UpdateLegislatorStats(ctx context.Context, id int64, agg models.Aggregates) error

	// Tickers.
	GetOrCreateTicker(ctx context.Context, symbol string) (t *models.Ticker, created bool, err error)
	TickerBySymbol(ctx context.Context, symbol string) (*models.Ticker, error)
	UpdateTicker(ctx context.Context, t *models.Ticker) error
	Tickers(ctx context.Context) ([]models.Ticker, error)
	UpdateTickerStats(ctx context.Context, id int64, agg models.Aggregates) error

	// Trades. InsertTrades ignores duplicates and returns the number of rows
	// actually created.
	InsertTrades(ctx context.Context, trades []models.Trade) (int, error)
	Trades(ctx context.Context, f TradeFilter) ([]models.Trade, error)
	CountTrades(ctx context.Context, f TradeFilter) (int64, error)

	// Summary windows. EnsureSummaryWindows creates missing rows; stats are
	// recomputed by the aggregation engine.
	EnsureSummaryWindows(ctx context.Context, windows []int) error
	SummaryStats(ctx context.Context) ([]models.SummaryStat, error)
	UpdateSummaryStat(ctx context.Context, window int, total, purchases, sales int64, volume float64) error

	Close()
}
