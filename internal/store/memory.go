package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/captrades/captrades/pkg/models"
)

// MemoryStore is a map-backed Store. It backs tests and one-shot CLI runs
// that do not need a database; dedup semantics match the Postgres
// implementation.
type MemoryStore struct {
	mu sync.RWMutex

	legislators []models.Legislator // insertion order preserved for matching
	tickers     []models.Ticker
	trades      []models.Trade
	tradeKeys   map[string]bool
	summary     []models.SummaryStat

	nextLegislatorID int64
	nextTickerID     int64
	nextTradeID      int64
	nextSummaryID    int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tradeKeys: make(map[string]bool)}
}

var _ Store = (*MemoryStore)(nil)

// --- Legislators ---

func (m *MemoryStore) UpsertLegislators(_ context.Context, legislators []models.Legislator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range legislators {
		if i := m.findLegislator(l); i >= 0 {
			l.ID = m.legislators[i].ID
			l.Aggregates = m.legislators[i].Aggregates
			m.legislators[i] = l
			continue
		}
		m.nextLegislatorID++
		l.ID = m.nextLegislatorID
		m.legislators = append(m.legislators, l)
	}
	return nil
}

// findLegislator locates an existing row by natural key. Must be called with
// mu held.
func (m *MemoryStore) findLegislator(l models.Legislator) int {
	for i, existing := range m.legislators {
		if l.Bioguide != "" && existing.Bioguide == l.Bioguide {
			return i
		}
		if l.Bioguide == "" && existing.FullName == l.FullName {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) LegislatorByID(_ context.Context, id int64) (*models.Legislator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.legislators {
		if m.legislators[i].ID == id {
			l := m.legislators[i]
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Legislators(_ context.Context, f LegislatorFilter) ([]models.Legislator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Legislator
	for _, l := range m.legislators {
		if f.TradedOnly && l.TotalTransactions == 0 {
			continue
		}
		if f.NameContains != "" && !containsFold(l.FullName, f.NameContains) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStore) MatchLegislator(_ context.Context, tokens []string) (*models.Legislator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.legislators {
		l := m.legislators[i]
		for _, tok := range tokens {
			if tok == "" {
				continue
			}
			if containsFold(l.FullName, tok) || containsFold(l.FirstName, tok) || containsFold(l.LastName, tok) {
				return &l, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateLegislatorStats(_ context.Context, id int64, agg models.Aggregates) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.legislators {
		if m.legislators[i].ID == id {
			m.legislators[i].Aggregates = agg
			return nil
		}
	}
	return ErrNotFound
}

// --- Tickers ---

func (m *MemoryStore) GetOrCreateTicker(_ context.Context, symbol string) (*models.Ticker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.tickers {
		if m.tickers[i].Symbol == symbol {
			t := m.tickers[i]
			return &t, false, nil
		}
	}
	m.nextTickerID++
	t := models.Ticker{ID: m.nextTickerID, Symbol: symbol}
	m.tickers = append(m.tickers, t)
	return &t, true, nil
}

func (m *MemoryStore) TickerBySymbol(_ context.Context, symbol string) (*models.Ticker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.tickers {
		if m.tickers[i].Symbol == symbol {
			t := m.tickers[i]
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateTicker(_ context.Context, t *models.Ticker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.tickers {
		if m.tickers[i].ID == t.ID {
			agg := m.tickers[i].Aggregates
			m.tickers[i] = *t
			m.tickers[i].Aggregates = agg
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) Tickers(_ context.Context) ([]models.Ticker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Ticker, len(m.tickers))
	copy(out, m.tickers)
	return out, nil
}

func (m *MemoryStore) UpdateTickerStats(_ context.Context, id int64, agg models.Aggregates) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.tickers {
		if m.tickers[i].ID == id {
			m.tickers[i].Aggregates = agg
			return nil
		}
	}
	return ErrNotFound
}

// --- Trades ---

func (m *MemoryStore) InsertTrades(_ context.Context, trades []models.Trade) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := 0
	for _, t := range trades {
		key := t.DedupKey()
		if m.tradeKeys[key] {
			continue
		}
		m.nextTradeID++
		t.ID = m.nextTradeID
		m.trades = append(m.trades, t)
		m.tradeKeys[key] = true
		created++
	}
	return created, nil
}

func (m *MemoryStore) Trades(_ context.Context, f TradeFilter) ([]models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Trade
	for _, t := range m.trades {
		if m.matchesFilter(t, f) {
			out = append(out, t)
		}
	}
	// Newest transactions first, matching the read API ordering.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.After(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStore) CountTrades(_ context.Context, f TradeFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, t := range m.trades {
		if m.matchesFilter(t, f) {
			n++
		}
	}
	return n, nil
}

// matchesFilter must be called with mu held (it may consult tickers and
// legislators for symbol/name constraints).
func (m *MemoryStore) matchesFilter(t models.Trade, f TradeFilter) bool {
	if f.LegislatorID != 0 && t.LegislatorID != f.LegislatorID {
		return false
	}
	if f.TickerID != 0 && (t.TickerID == nil || *t.TickerID != f.TickerID) {
		return false
	}
	if f.TickerSymbol != "" {
		if t.TickerID == nil {
			return false
		}
		symbol := ""
		for i := range m.tickers {
			if m.tickers[i].ID == *t.TickerID {
				symbol = m.tickers[i].Symbol
				break
			}
		}
		if !strings.EqualFold(symbol, f.TickerSymbol) {
			return false
		}
	}
	if f.NameContains != "" {
		name := ""
		for i := range m.legislators {
			if m.legislators[i].ID == t.LegislatorID {
				name = m.legislators[i].FullName
				break
			}
		}
		if !containsFold(name, f.NameContains) {
			return false
		}
	}
	if f.TransactionType != "" && t.TransactionType != f.TransactionType {
		return false
	}
	if !f.Since.IsZero() && !t.TransactionDate.After(f.Since) {
		return false
	}
	if !f.Until.IsZero() && t.TransactionDate.After(f.Until) {
		return false
	}
	return true
}

// --- Summary stats ---

func (m *MemoryStore) EnsureSummaryWindows(_ context.Context, windows []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range windows {
		exists := false
		for i := range m.summary {
			if m.summary[i].Window == w {
				exists = true
				break
			}
		}
		if !exists {
			m.nextSummaryID++
			m.summary = append(m.summary, models.SummaryStat{ID: m.nextSummaryID, Window: w})
		}
	}
	return nil
}

func (m *MemoryStore) SummaryStats(_ context.Context) ([]models.SummaryStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.SummaryStat, len(m.summary))
	copy(out, m.summary)
	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out, nil
}

func (m *MemoryStore) UpdateSummaryStat(_ context.Context, window int, total, purchases, sales int64, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.summary {
		if m.summary[i].Window == window {
			m.summary[i].Total = total
			m.summary[i].Purchases = purchases
			m.summary[i].Sales = sales
			m.summary[i].TotalVolume = volume
			return nil
		}
	}
	return ErrNotFound
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() {}

// --- helpers ---

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
