// Package models defines the core data structures shared across captrades:
// legislators, tickers, disclosed trades, summary statistics, and the raw
// records produced by the Senate eFD scraper.
package models

// Legislator is a member of Congress known from the legislator directory.
// Aggregate fields are derived from the associated Trade set and are only
// ever written by the aggregation engine.
type Legislator struct {
	ID        int64  `json:"id"`
	Bioguide  string `json:"bioguide"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
	Party     string `json:"party"`
	Chamber   string `json:"chamber"` // "Senator" or "House"
	State     string `json:"state"`
	Image     string `json:"image"`
	Terms     []Term `json:"terms,omitempty"`

	Aggregates
}

// Term is a single term of service from the legislator directory.
type Term struct {
	Type  string `json:"type"` // "sen" or "rep"
	State string `json:"state"`
	Party string `json:"party,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end"`
}

// Aggregates holds the four derived statistics shared by Legislator and
// Ticker. TotalVolume is the bucket-midpoint volume estimate, not an exact
// figure, since filings only disclose amounts as dollar ranges.
type Aggregates struct {
	TotalTransactions int64   `json:"totalTransactions"`
	Purchases         int64   `json:"purchases"`
	Sales             int64   `json:"sales"`
	TotalVolume       float64 `json:"totalVolume"`
}
