package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/captrades/captrades/internal/aggregate"
	"github.com/captrades/captrades/internal/store"
	"github.com/captrades/captrades/internal/tickerdata"
	"github.com/captrades/captrades/pkg/models"
)

// stubEnricher records lookups and serves canned profiles.
type stubEnricher struct {
	lookups  []string
	profiles map[string]*tickerdata.Enrichment
}

func (s *stubEnricher) Lookup(_ context.Context, symbol string) (*tickerdata.Enrichment, error) {
	s.lookups = append(s.lookups, symbol)
	if p, ok := s.profiles[symbol]; ok {
		return p, nil
	}
	return nil, tickerdata.ErrNotFound
}

func newTestEngine(t *testing.T, enricher Enricher) (*Engine, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	err := s.UpsertLegislators(ctx, []models.Legislator{
		{Bioguide: "C001035", FirstName: "Susan", LastName: "Collins", FullName: "Susan Collins"},
		{Bioguide: "T000278", FirstName: "Tommy", LastName: "Tuberville", FullName: "Tommy Tuberville"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	agg := aggregate.New(s, []int{30, 60, 90, 120}, zerolog.Nop())
	return NewEngine(s, enricher, agg, zerolog.Nop()), s
}

func rawRecord() models.RawRecord {
	return models.RawRecord{
		Name:             "Collins, Susan M. (Senator)",
		NotificationDate: "03/14/2026",
		Link:             "https://efdsearch.senate.gov/search/view/ptr/abc123/",
		TransactionDate:  "03/10/2026",
		Owner:            "Self",
		Ticker:           models.TickerCell{Text: "AAPL", Href: "https://finance.yahoo.com/q?s=AAPL"},
		AssetName:        models.AssetCell{Text: "Apple Inc."},
		AssetType:        "Stock",
		Type:             "Purchase",
		Amount:           "$1,001 - $15,000",
		Comment:          "--",
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	enricher := &stubEnricher{profiles: map[string]*tickerdata.Enrichment{
		"AAPL": {Company: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics", MarketCap: 3200000000000, QuoteType: "EQUITY"},
	}}
	e, s := newTestEngine(t, enricher)

	report, err := e.Ingest(ctx, []models.RawRecord{rawRecord()})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if report.Created != 1 || report.Duplicates != 0 || report.NewTickers != 1 {
		t.Fatalf("first report = %+v", report)
	}

	report, err = e.Ingest(ctx, []models.RawRecord{rawRecord()})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if report.Created != 0 || report.Duplicates != 1 {
		t.Fatalf("second report = %+v", report)
	}

	if n, _ := s.CountTrades(ctx, store.TradeFilter{}); n != 1 {
		t.Errorf("trade count = %d, want 1", n)
	}

	// The ticker was enriched once, on creation.
	if len(enricher.lookups) != 1 {
		t.Errorf("enricher called %d times, want 1", len(enricher.lookups))
	}
	tk, err := s.TickerBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("ticker: %v", err)
	}
	if tk.Sector != "Technology" || tk.Company != "Apple Inc." {
		t.Errorf("ticker not enriched: %+v", tk)
	}

	// Rollups were recomputed.
	l, err := s.MatchLegislator(ctx, []string{"Collins"})
	if err != nil {
		t.Fatalf("legislator: %v", err)
	}
	if l.TotalTransactions != 1 || l.Purchases != 1 || l.TotalVolume != 8000.5 {
		t.Errorf("legislator aggregates = %+v", l.Aggregates)
	}
}

func TestIngestSkipsDottedSymbolsFromEnrichment(t *testing.T) {
	ctx := context.Background()
	enricher := &stubEnricher{}
	e, s := newTestEngine(t, enricher)

	rec := rawRecord()
	rec.Ticker = models.TickerCell{Text: "BRK.B"}
	rec.AssetName = models.AssetCell{Text: "Berkshire Hathaway Inc. Class B"}

	report, err := e.Ingest(ctx, []models.RawRecord{rec})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Created != 1 || report.NewTickers != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(enricher.lookups) != 0 {
		t.Errorf("dotted symbol was sent to the profile API: %v", enricher.lookups)
	}
	tk, err := s.TickerBySymbol(ctx, "BRK.B")
	if err != nil {
		t.Fatalf("ticker: %v", err)
	}
	if tk.Company != "" || tk.Sector != "" {
		t.Errorf("dotted symbol should stay bare: %+v", tk)
	}
}

func TestIngestFundSectorSentinel(t *testing.T) {
	ctx := context.Background()
	enricher := &stubEnricher{profiles: map[string]*tickerdata.Enrichment{
		"SPY": {Company: "SPDR S&P 500", QuoteType: "ETF"},
	}}
	e, s := newTestEngine(t, enricher)

	rec := rawRecord()
	rec.Ticker = models.TickerCell{Text: "SPY"}
	rec.AssetName = models.AssetCell{Text: "SPDR S&P 500 ETF Trust"}

	if _, err := e.Ingest(ctx, []models.RawRecord{rec}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	tk, err := s.TickerBySymbol(ctx, "SPY")
	if err != nil {
		t.Fatalf("ticker: %v", err)
	}
	if tk.Sector != "ETF" || tk.QuoteType != "ETF" {
		t.Errorf("fund sector sentinel missing: %+v", tk)
	}
}

func TestIngestTickerlessAndOptionRows(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, &stubEnricher{})

	bond := rawRecord()
	bond.Ticker = models.TickerCell{Text: "--"}
	bond.AssetName = models.AssetCell{
		Text:    "JPMorgan Chase & Co. Notes",
		Subtext: []string{"Rates/Matures: 4.625%/11/13/2031"},
	}
	bond.AssetType = "Corporate Bond"
	bond.Type = "Sale (Full)"

	option := rawRecord()
	option.Ticker = models.TickerCell{Text: "NVDA"}
	option.AssetName = models.AssetCell{
		Text:    "NVIDIA Corporation Option",
		Subtext: []string{"Call Option", "Strike price: $120 Expires: 01/16/2027"},
	}
	option.AssetType = "Stock Option"

	descriptive := rawRecord()
	descriptive.Ticker = models.TickerCell{Text: "--"}
	descriptive.AssetName = models.AssetCell{
		Text:    "Vanguard Real Estate Fund",
		Subtext: []string{"Formerly traded as VGSIX"},
	}
	descriptive.AssetType = "Mutual Fund"

	report, err := e.Ingest(ctx, []models.RawRecord{bond, option, descriptive})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Created != 3 {
		t.Fatalf("report = %+v", report)
	}

	trades, err := s.Trades(ctx, store.TradeFilter{})
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	for _, tr := range trades {
		switch tr.AssetType {
		case "Corporate Bond":
			if tr.TickerID != nil {
				t.Errorf("bond row got a ticker: %+v", tr)
			}
			if tr.AssetDetails != "Rates/Matures: 4.625%/11/13/2031" {
				t.Errorf("bond details = %q", tr.AssetDetails)
			}
		case "Stock Option":
			if tr.AssetDetails != "Call Option Strike price: $120 Expires: 01/16/2027" {
				t.Errorf("option details = %q", tr.AssetDetails)
			}
		case "Mutual Fund":
			// Subtext that is not bond or option terms is dropped.
			if tr.AssetDetails != "" {
				t.Errorf("descriptive subtext kept: %q", tr.AssetDetails)
			}
		}
	}
}

func TestIngestUnresolvedAndPaper(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, &stubEnricher{})

	unknown := rawRecord()
	unknown.Name = "Pelosi, Nancy (Representative)"

	paper := models.RawRecord{
		Name:             "Tuberville, Tommy (Senator)",
		NotificationDate: "03/12/2026",
		Link:             "https://efdsearch.senate.gov/search/view/paper/xyz789/",
		Paper:            true,
	}

	malformed := rawRecord()
	malformed.TransactionDate = "not a date"

	report, err := e.Ingest(ctx, []models.RawRecord{rawRecord(), unknown, paper, malformed})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Created != 1 || report.Unresolved != 1 || report.Skipped != 2 {
		t.Fatalf("report = %+v", report)
	}
	if n, _ := s.CountTrades(ctx, store.TradeFilter{}); n != 1 {
		t.Errorf("trade count = %d, want 1", n)
	}
}

func TestIngestHistorical(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t, &stubEnricher{})

	// Historical dumps store the ticker cell as either a string or a
	// [text, href] pair, and the asset cell likewise.
	dump := `[
		{
			"Name": "Collins, Susan M. (Senator)",
			"Notification Date": "05/05/2021",
			"Link": "https://efdsearch.senate.gov/search/view/ptr/old1/",
			"Transaction Date": "05/01/2021",
			"Owner": "Spouse",
			"Ticker": ["MSFT", "https://finance.yahoo.com/q?s=MSFT"],
			"Asset Name": "Microsoft Corporation",
			"Asset Type": "Stock",
			"Type": "Sale (Partial)",
			"Amount": "$15,001 - $50,000",
			"Comment": "--"
		},
		{
			"Name": "Tuberville, Tommy (Senator)",
			"Notification Date": "06/07/2021",
			"Link": "https://efdsearch.senate.gov/search/view/ptr/old2/",
			"Transaction Date": "06/01/2021",
			"Owner": "Self",
			"Ticker": "--",
			"Asset Name": ["Alabama Muni Bond", ["Rates/Matures: 3.5%/01/01/2030"]],
			"Asset Type": "Municipal Security",
			"Type": "Purchase",
			"Amount": "$50,001 - $100,000",
			"Comment": "--"
		}
	]`

	report, err := e.IngestHistorical(ctx, strings.NewReader(dump))
	if err != nil {
		t.Fatalf("historical ingest: %v", err)
	}
	if report.Created != 2 {
		t.Fatalf("report = %+v", report)
	}

	trades, err := s.Trades(ctx, store.TradeFilter{NameContains: "Tuberville"})
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	if len(trades) != 1 || trades[0].AssetDetails != "Rates/Matures: 3.5%/01/01/2030" {
		t.Errorf("bond dump row = %+v", trades)
	}
}
