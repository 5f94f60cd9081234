package models

// SummaryStat is one rolling global time window over all trades. One row
// exists per configured window; all four statistic fields are recomputed on
// every pipeline run from the trades whose transaction date falls inside
// (today − window, today].
type SummaryStat struct {
	ID          int64   `json:"id"`
	Window      int     `json:"timeframe"` // window length in days, e.g. 30/60/90/120
	Total       int64   `json:"total"`
	Purchases   int64   `json:"purchases"`
	Sales       int64   `json:"sales"`
	TotalVolume float64 `json:"totalVolume"`
}
