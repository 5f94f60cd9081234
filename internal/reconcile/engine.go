package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/captrades/captrades/internal/aggregate"
	"github.com/captrades/captrades/internal/store"
	"github.com/captrades/captrades/internal/tickerdata"
	"github.com/captrades/captrades/pkg/models"
)

const filingDateLayout = "01/02/2006"

// Filings mark tickerless rows with placeholder dashes.
var noTickerValues = map[string]bool{"": true, "--": true, "-": true}

// Enricher provides company profiles for newly seen symbols.
type Enricher interface {
	Lookup(ctx context.Context, symbol string) (*tickerdata.Enrichment, error)
}

// Report summarizes one ingest run.
type Report struct {
	Records    int `json:"records"`    // raw rows considered
	Created    int `json:"created"`    // trades inserted
	Duplicates int `json:"duplicates"` // rows already on record
	Unresolved int `json:"unresolved"` // filer matched nobody on the roster
	Skipped    int `json:"skipped"`    // paper filings and malformed rows
	NewTickers int `json:"new_tickers"`
}

// Engine reconciles raw filing rows into the store.
type Engine struct {
	store    store.Store
	resolver *Resolver
	enricher Enricher
	agg      *aggregate.Engine
	log      zerolog.Logger
}

// NewEngine wires a reconciliation engine. enricher may be nil, in which
// case new tickers stay bare.
func NewEngine(st store.Store, enricher Enricher, agg *aggregate.Engine, log zerolog.Logger) *Engine {
	return &Engine{
		store:    st,
		resolver: NewResolver(st),
		enricher: enricher,
		agg:      agg,
		log:      log.With().Str("component", "reconcile").Logger(),
	}
}

// Ingest reconciles a batch of raw rows: resolves filers, materializes
// tickers, builds trades, and bulk-inserts them with duplicates dropped on
// the dedup key. Afterwards the affected rollups are recomputed.
func (e *Engine) Ingest(ctx context.Context, records []models.RawRecord) (*Report, error) {
	report := &Report{Records: len(records)}

	var pending []models.Trade
	affectedLegislators := map[int64]bool{}
	affectedTickers := map[int64]bool{}

	for _, rec := range records {
		if rec.Paper {
			report.Skipped++
			continue
		}

		trade, newTicker, err := e.buildTrade(ctx, rec)
		if err != nil {
			if errors.Is(err, ErrNoMatch) {
				report.Unresolved++
				e.log.Warn().Str("filer", rec.Name).Msg("filer not on roster")
			} else {
				report.Skipped++
				e.log.Warn().Err(err).Str("filer", rec.Name).Msg("dropping row")
			}
			continue
		}

		if newTicker {
			report.NewTickers++
		}
		pending = append(pending, *trade)
		affectedLegislators[trade.LegislatorID] = true
		if trade.TickerID != nil {
			affectedTickers[*trade.TickerID] = true
		}
	}

	created, err := e.store.InsertTrades(ctx, pending)
	if err != nil {
		return report, fmt.Errorf("insert trades: %w", err)
	}
	report.Created = created
	report.Duplicates = len(pending) - created

	e.agg.RecomputeAffected(ctx, keys(affectedLegislators), keys(affectedTickers))

	e.log.Info().
		Int("records", report.Records).
		Int("created", report.Created).
		Int("duplicates", report.Duplicates).
		Int("unresolved", report.Unresolved).
		Int("skipped", report.Skipped).
		Msg("ingest complete")
	return report, nil
}

func (e *Engine) buildTrade(ctx context.Context, rec models.RawRecord) (*models.Trade, bool, error) {
	legislator, err := e.resolver.Resolve(ctx, rec.Name)
	if err != nil {
		return nil, false, err
	}

	transactionDate, err := time.Parse(filingDateLayout, rec.TransactionDate)
	if err != nil {
		return nil, false, fmt.Errorf("transaction date %q: %w", rec.TransactionDate, err)
	}
	disclosureDate, err := time.Parse(filingDateLayout, rec.NotificationDate)
	if err != nil {
		return nil, false, fmt.Errorf("notification date %q: %w", rec.NotificationDate, err)
	}

	tickerID, created, err := e.resolveTicker(ctx, rec.Ticker.Text)
	if err != nil {
		return nil, false, err
	}

	trade := &models.Trade{
		LegislatorID:     legislator.ID,
		TickerID:         tickerID,
		TransactionDate:  transactionDate,
		DisclosureDate:   disclosureDate,
		TransactionType:  rec.Type,
		Amount:           rec.Amount,
		Owner:            rec.Owner,
		AssetDescription: rec.AssetName.Text,
		AssetDetails:     assetDetails(rec.AssetName),
		AssetType:        rec.AssetType,
		Comment:          rec.Comment,
		PTRLink:          rec.Link,
	}
	return trade, created, nil
}

// resolveTicker materializes the symbol's ticker row, enriching it on first
// sight. Symbols containing dots or dashes are share classes and other
// instruments the profile API keys differently, so those stay bare.
func (e *Engine) resolveTicker(ctx context.Context, symbol string) (*int64, bool, error) {
	symbol = strings.TrimSpace(symbol)
	if noTickerValues[symbol] {
		return nil, false, nil
	}

	ticker, created, err := e.store.GetOrCreateTicker(ctx, symbol)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return &ticker.ID, false, nil
	}

	if e.enricher != nil && !strings.ContainsAny(symbol, ".-") {
		e.enrich(ctx, ticker)
	}
	return &ticker.ID, true, nil
}

// enrich fills a fresh ticker's profile. Lookup failures leave the row bare
// rather than failing the ingest.
func (e *Engine) enrich(ctx context.Context, ticker *models.Ticker) {
	profile, err := e.enricher.Lookup(ctx, ticker.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", ticker.Symbol).Msg("enrichment failed")
		return
	}

	ticker.Company = profile.Company
	ticker.Industry = profile.Industry
	ticker.MarketCap = profile.MarketCap
	ticker.QuoteType = profile.QuoteType
	// Funds and other non-equities have no sector; surface the instrument
	// kind there instead.
	if profile.QuoteType != "" && profile.QuoteType != "EQUITY" {
		ticker.Sector = profile.QuoteType
	} else {
		ticker.Sector = profile.Sector
	}

	if err := e.store.UpdateTicker(ctx, ticker); err != nil {
		e.log.Warn().Err(err).Str("symbol", ticker.Symbol).Msg("ticker update failed")
	}
}

// assetDetails folds the asset cell's detail lines into one string when they
// describe bond terms or option contracts.
func assetDetails(cell models.AssetCell) string {
	if len(cell.Subtext) == 0 {
		return ""
	}
	first := strings.ToLower(cell.Subtext[0])
	if strings.Contains(first, "rates/matures") ||
		strings.Contains(first, "put") ||
		strings.Contains(first, "call") {
		return strings.Join(cell.Subtext, " ")
	}
	return ""
}

func keys(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
