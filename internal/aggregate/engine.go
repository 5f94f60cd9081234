package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/captrades/captrades/internal/store"
	"github.com/captrades/captrades/pkg/models"
)

// Engine recomputes per-legislator, per-ticker, and sliding-window summary
// statistics from the trades on record.
type Engine struct {
	store   store.Store
	windows []int
	now     func() time.Time
	log     zerolog.Logger
}

// New creates an engine computing summaries for the given windows (in days).
func New(st store.Store, windows []int, log zerolog.Logger) *Engine {
	return &Engine{
		store:   st,
		windows: windows,
		now:     time.Now,
		log:     log.With().Str("component", "aggregate").Logger(),
	}
}

func tally(trades []models.Trade) models.Aggregates {
	agg := models.Aggregates{
		TotalTransactions: int64(len(trades)),
		TotalVolume:       VolumeMidpoint(trades),
	}
	for _, t := range trades {
		switch {
		case t.TransactionType == models.TxPurchase:
			agg.Purchases++
		case models.IsSale(t.TransactionType):
			agg.Sales++
		}
	}
	return agg
}

// RecomputeLegislator refreshes one legislator's rollup from their trades.
func (e *Engine) RecomputeLegislator(ctx context.Context, id int64) error {
	trades, err := e.store.Trades(ctx, store.TradeFilter{LegislatorID: id})
	if err != nil {
		return fmt.Errorf("trades for legislator %d: %w", id, err)
	}
	if err := e.store.UpdateLegislatorStats(ctx, id, tally(trades)); err != nil {
		return fmt.Errorf("legislator %d stats: %w", id, err)
	}
	return nil
}

// RecomputeTicker refreshes one ticker's rollup from its trades.
func (e *Engine) RecomputeTicker(ctx context.Context, id int64) error {
	trades, err := e.store.Trades(ctx, store.TradeFilter{TickerID: id})
	if err != nil {
		return fmt.Errorf("trades for ticker %d: %w", id, err)
	}
	if err := e.store.UpdateTickerStats(ctx, id, tally(trades)); err != nil {
		return fmt.Errorf("ticker %d stats: %w", id, err)
	}
	return nil
}

// RecomputeSummaries refreshes every configured sliding window. A window of
// w days covers transaction dates after today-w up to and including today.
func (e *Engine) RecomputeSummaries(ctx context.Context) error {
	if err := e.store.EnsureSummaryWindows(ctx, e.windows); err != nil {
		return err
	}

	today := e.now()
	for _, w := range e.windows {
		trades, err := e.store.Trades(ctx, store.TradeFilter{
			Since: today.AddDate(0, 0, -w),
			Until: today,
		})
		if err != nil {
			return fmt.Errorf("trades in %d-day window: %w", w, err)
		}
		agg := tally(trades)
		err = e.store.UpdateSummaryStat(ctx, w, agg.TotalTransactions, agg.Purchases, agg.Sales, agg.TotalVolume)
		if err != nil {
			return fmt.Errorf("summary window %d: %w", w, err)
		}
	}
	return nil
}

// RecomputeAll refreshes every legislator, every ticker, and all summary
// windows. Used by the recompute command and after bulk historical loads.
func (e *Engine) RecomputeAll(ctx context.Context) error {
	legislators, err := e.store.Legislators(ctx, store.LegislatorFilter{})
	if err != nil {
		return fmt.Errorf("list legislators: %w", err)
	}
	for _, l := range legislators {
		if err := e.RecomputeLegislator(ctx, l.ID); err != nil {
			return err
		}
	}

	tickers, err := e.store.Tickers(ctx)
	if err != nil {
		return fmt.Errorf("list tickers: %w", err)
	}
	for _, t := range tickers {
		if err := e.RecomputeTicker(ctx, t.ID); err != nil {
			return err
		}
	}

	return e.RecomputeSummaries(ctx)
}

// RecomputeAffected refreshes only the given legislators and tickers, then
// the summary windows. Incremental ingests use this instead of a full pass;
// individual failures are logged and do not abort the rest.
func (e *Engine) RecomputeAffected(ctx context.Context, legislatorIDs, tickerIDs []int64) {
	for _, id := range legislatorIDs {
		if err := e.RecomputeLegislator(ctx, id); err != nil {
			e.log.Error().Err(err).Int64("legislator_id", id).Msg("recompute failed")
		}
	}
	for _, id := range tickerIDs {
		if err := e.RecomputeTicker(ctx, id); err != nil {
			e.log.Error().Err(err).Int64("ticker_id", id).Msg("recompute failed")
		}
	}
	if err := e.RecomputeSummaries(ctx); err != nil {
		e.log.Error().Err(err).Msg("summary recompute failed")
	}
}
