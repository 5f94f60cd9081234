// Package aggregate recomputes rollup statistics from stored trades.
package aggregate

import "github.com/captrades/captrades/pkg/models"

// AmountRange is one disclosure value bracket.
type AmountRange struct {
	Min int64
	Max int64
}

// AmountRanges maps the fixed disclosure amount labels to their bounds.
// Filings never carry exact values, only these brackets; the open-ended top
// bracket is pinned to its floor.
var AmountRanges = map[string]AmountRange{
	"$1,001 - $15,000":          {1001, 15000},
	"$15,001 - $50,000":         {15001, 50000},
	"$50,001 - $100,000":        {50001, 100000},
	"$100,001 - $250,000":       {100001, 250000},
	"$250,001 - $500,000":       {250001, 500000},
	"$500,001 - $1,000,000":     {500001, 1000000},
	"$1,000,001 - $5,000,000":   {1000001, 5000000},
	"$5,000,001 - $25,000,000":  {5000001, 25000000},
	"$25,000,001 - $50,000,000": {25000001, 50000000},
	"Over $50,000,000":          {50000000, 50000000},
}

// VolumeMidpoint estimates total traded volume as the midpoint between the
// sum of bracket floors and the sum of bracket ceilings. Unrecognized amount
// labels contribute nothing.
func VolumeMidpoint(trades []models.Trade) float64 {
	var sumMin, sumMax int64
	for _, t := range trades {
		r, ok := AmountRanges[t.Amount]
		if !ok {
			continue
		}
		sumMin += r.Min
		sumMax += r.Max
	}
	return float64(sumMin+sumMax) / 2
}
