package models

// Ticker is a traded instrument referenced by at least one disclosure.
// Rows are created lazily on first sighting during reconciliation and
// enriched from the market-data source; enrichment fields stay empty when
// the lookup misses.
type Ticker struct {
	ID        int64  `json:"id"`
	Symbol    string `json:"symbol"`
	Company   string `json:"company"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
	MarketCap int64  `json:"marketCap"`
	QuoteType string `json:"quoteType"` // e.g. "EQUITY", "ETF", "MUTUALFUND"

	Aggregates
}
