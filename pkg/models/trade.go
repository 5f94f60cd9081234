package models

import (
	"fmt"
	"strings"
	"time"
)

// Transaction types as they appear on periodic transaction reports.
const (
	TxPurchase    = "Purchase"
	TxSaleFull    = "Sale (Full)"
	TxSalePartial = "Sale (Partial)"
	TxExchange    = "Exchange"
)

// IsSale reports whether a transaction type counts as a sale. Both full and
// partial sales share the "Sale" prefix.
func IsSale(transactionType string) bool {
	return strings.HasPrefix(transactionType, "Sale")
}

// Trade is a single disclosed transaction. Rows are immutable once inserted;
// re-ingesting the same filing is deduplicated on the composite key (see
// DedupKey).
type Trade struct {
	ID           int64  `json:"id"`
	LegislatorID int64  `json:"legislatorId"`
	TickerID     *int64 `json:"tickerId,omitempty"` // nil when the asset has no ticker

	TransactionDate time.Time `json:"transactionDate"`
	DisclosureDate  time.Time `json:"disclosureDate"`

	TransactionType  string `json:"transactionType"`
	Amount           string `json:"amount"` // one of the ten fixed range labels
	Owner            string `json:"owner"`  // Self, Spouse, Child, Joint
	AssetDescription string `json:"assetDescription"`
	AssetDetails     string `json:"assetDetails,omitempty"` // rate/maturity or option strike/expiry text
	AssetType        string `json:"assetType"`
	Comment          string `json:"comment,omitempty"`
	PTRLink          string `json:"ptrLink"`
	PDF              bool   `json:"pdf"` // source filing was a scanned paper report
}

// DedupKey returns the canonical string form of the uniqueness tuple. Two
// trades with equal keys describe the same disclosed transaction.
func (t *Trade) DedupKey() string {
	tickerID := int64(0)
	if t.TickerID != nil {
		tickerID = *t.TickerID
	}
	return fmt.Sprintf("%d|%d|%s|%s|%s|%s|%s|%s|%s|%s|%t|%s",
		t.LegislatorID,
		tickerID,
		t.TransactionDate.Format("2006-01-02"),
		t.DisclosureDate.Format("2006-01-02"),
		t.Owner,
		t.AssetDescription,
		t.AssetType,
		t.TransactionType,
		t.Amount,
		t.Comment,
		t.PDF,
		t.PTRLink,
	)
}
