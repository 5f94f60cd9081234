package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/captrades/captrades/pkg/models"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to the database, verifies the connection, and ensures
// the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// The trades unique index is the deduplication mechanism: inserts use
// ON CONFLICT DO NOTHING against it. COALESCE folds the nullable ticker
// reference into the key.
const schema = `
CREATE TABLE IF NOT EXISTS legislators (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	bioguide    TEXT NOT NULL DEFAULT '',
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	full_name   TEXT NOT NULL,
	party       TEXT NOT NULL DEFAULT '',
	chamber     TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	terms       JSONB,
	total_transactions BIGINT NOT NULL DEFAULT 0,
	purchases   BIGINT NOT NULL DEFAULT 0,
	sales       BIGINT NOT NULL DEFAULT 0,
	total_volume DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS legislators_bioguide_key
	ON legislators (bioguide) WHERE bioguide <> '';

CREATE TABLE IF NOT EXISTS tickers (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	symbol      TEXT NOT NULL UNIQUE,
	company     TEXT NOT NULL DEFAULT '',
	sector      TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	market_cap  BIGINT NOT NULL DEFAULT 0,
	quote_type  TEXT NOT NULL DEFAULT '',
	total_transactions BIGINT NOT NULL DEFAULT 0,
	purchases   BIGINT NOT NULL DEFAULT 0,
	sales       BIGINT NOT NULL DEFAULT 0,
	total_volume DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	legislator_id    BIGINT NOT NULL REFERENCES legislators(id) ON DELETE CASCADE,
	ticker_id        BIGINT REFERENCES tickers(id) ON DELETE CASCADE,
	transaction_date DATE NOT NULL,
	disclosure_date  DATE NOT NULL,
	transaction_type TEXT NOT NULL DEFAULT '',
	amount           TEXT NOT NULL DEFAULT '',
	owner            TEXT NOT NULL DEFAULT '',
	asset_description TEXT NOT NULL DEFAULT '',
	asset_details    TEXT NOT NULL DEFAULT '',
	asset_type       TEXT NOT NULL DEFAULT '',
	comment          TEXT NOT NULL DEFAULT '',
	ptr_link         TEXT NOT NULL DEFAULT '',
	pdf              BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE UNIQUE INDEX IF NOT EXISTS trades_dedup_key ON trades (
	legislator_id, COALESCE(ticker_id, 0), transaction_date, disclosure_date,
	owner, asset_description, asset_type, transaction_type, amount, comment,
	pdf, ptr_link
);
CREATE INDEX IF NOT EXISTS trades_transaction_date_idx ON trades (transaction_date DESC);

CREATE TABLE IF NOT EXISTS summary_stats (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	timeframe    BIGINT NOT NULL UNIQUE,
	total        BIGINT NOT NULL DEFAULT 0,
	purchases    BIGINT NOT NULL DEFAULT 0,
	sales        BIGINT NOT NULL DEFAULT 0,
	total_volume DOUBLE PRECISION NOT NULL DEFAULT 0
);
`

// --- Legislators ---

func (s *PostgresStore) UpsertLegislators(ctx context.Context, legislators []models.Legislator) error {
	batch := &pgx.Batch{}
	for _, l := range legislators {
		terms, err := json.Marshal(l.Terms)
		if err != nil {
			return fmt.Errorf("marshal terms for %s: %w", l.FullName, err)
		}
		if l.Bioguide != "" {
			batch.Queue(`
				INSERT INTO legislators (bioguide, first_name, last_name, full_name, party, chamber, state, image, terms)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (bioguide) WHERE bioguide <> '' DO UPDATE SET
					first_name = EXCLUDED.first_name,
					last_name  = EXCLUDED.last_name,
					full_name  = EXCLUDED.full_name,
					party      = EXCLUDED.party,
					chamber    = EXCLUDED.chamber,
					state      = EXCLUDED.state,
					image      = EXCLUDED.image,
					terms      = EXCLUDED.terms`,
				l.Bioguide, l.FirstName, l.LastName, l.FullName, l.Party, l.Chamber, l.State, l.Image, terms)
			continue
		}
		// No bioguide: the full name is the natural key.
		batch.Queue(`
			INSERT INTO legislators (bioguide, first_name, last_name, full_name, party, chamber, state, image, terms)
			SELECT '', $1, $2, $3, $4, $5, $6, $7, $8
			WHERE NOT EXISTS (SELECT 1 FROM legislators WHERE full_name = $3)`,
			l.FirstName, l.LastName, l.FullName, l.Party, l.Chamber, l.State, l.Image, terms)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range legislators {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("upsert legislator: %w", err)
		}
	}
	return nil
}

const legislatorColumns = `id, bioguide, first_name, last_name, full_name, party, chamber, state, image, terms,
	total_transactions, purchases, sales, total_volume`

func scanLegislator(row pgx.Row) (*models.Legislator, error) {
	var l models.Legislator
	var terms []byte
	err := row.Scan(&l.ID, &l.Bioguide, &l.FirstName, &l.LastName, &l.FullName, &l.Party, &l.Chamber,
		&l.State, &l.Image, &terms, &l.TotalTransactions, &l.Purchases, &l.Sales, &l.TotalVolume)
	if err != nil {
		return nil, err
	}
	if len(terms) > 0 {
		if err := json.Unmarshal(terms, &l.Terms); err != nil {
			return nil, fmt.Errorf("unmarshal terms: %w", err)
		}
	}
	return &l, nil
}

func (s *PostgresStore) LegislatorByID(ctx context.Context, id int64) (*models.Legislator, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+legislatorColumns+` FROM legislators WHERE id = $1`, id)
	l, err := scanLegislator(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return l, err
}

func (s *PostgresStore) Legislators(ctx context.Context, f LegislatorFilter) ([]models.Legislator, error) {
	query := `SELECT ` + legislatorColumns + ` FROM legislators`
	var where []string
	var args []any
	if f.TradedOnly {
		where = append(where, "total_transactions > 0")
	}
	if f.NameContains != "" {
		args = append(args, "%"+f.NameContains+"%")
		where = append(where, fmt.Sprintf("full_name ILIKE $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY full_name"
	query += limitOffset(&args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query legislators: %w", err)
	}
	defer rows.Close()

	var out []models.Legislator
	for rows.Next() {
		l, err := scanLegislator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MatchLegislator(ctx context.Context, tokens []string) (*models.Legislator, error) {
	var clauses []string
	var args []any
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		args = append(args, "%"+tok+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("full_name ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d", n, n, n))
	}
	if len(clauses) == 0 {
		return nil, ErrNotFound
	}

	query := `SELECT ` + legislatorColumns + ` FROM legislators WHERE ` +
		strings.Join(clauses, " OR ") + ` ORDER BY id LIMIT 1`
	l, err := scanLegislator(s.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return l, err
}

func (s *PostgresStore) UpdateLegislatorStats(ctx context.Context, id int64, agg models.Aggregates) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE legislators SET total_transactions = $2, purchases = $3, sales = $4, total_volume = $5
		WHERE id = $1`,
		id, agg.TotalTransactions, agg.Purchases, agg.Sales, agg.TotalVolume)
	if err != nil {
		return fmt.Errorf("update legislator stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Tickers ---

const tickerColumns = `id, symbol, company, sector, industry, market_cap, quote_type,
	total_transactions, purchases, sales, total_volume`

func scanTicker(row pgx.Row) (*models.Ticker, error) {
	var t models.Ticker
	err := row.Scan(&t.ID, &t.Symbol, &t.Company, &t.Sector, &t.Industry, &t.MarketCap, &t.QuoteType,
		&t.TotalTransactions, &t.Purchases, &t.Sales, &t.TotalVolume)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetOrCreateTicker(ctx context.Context, symbol string) (*models.Ticker, bool, error) {
	// Insert first; losing the conflict race means another run created it.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tickers (symbol) VALUES ($1)
		ON CONFLICT (symbol) DO NOTHING
		RETURNING `+tickerColumns, symbol)
	t, err := scanTicker(row)
	if err == nil {
		return t, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, fmt.Errorf("create ticker %s: %w", symbol, err)
	}

	t, err = s.TickerBySymbol(ctx, symbol)
	if err != nil {
		return nil, false, err
	}
	return t, false, nil
}

func (s *PostgresStore) TickerBySymbol(ctx context.Context, symbol string) (*models.Ticker, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tickerColumns+` FROM tickers WHERE symbol = $1`, symbol)
	t, err := scanTicker(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) UpdateTicker(ctx context.Context, t *models.Ticker) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tickers SET company = $2, sector = $3, industry = $4, market_cap = $5, quote_type = $6
		WHERE id = $1`,
		t.ID, t.Company, t.Sector, t.Industry, t.MarketCap, t.QuoteType)
	if err != nil {
		return fmt.Errorf("update ticker %s: %w", t.Symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Tickers(ctx context.Context) ([]models.Ticker, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tickerColumns+` FROM tickers ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	var out []models.Ticker
	for rows.Next() {
		t, err := scanTicker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateTickerStats(ctx context.Context, id int64, agg models.Aggregates) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tickers SET total_transactions = $2, purchases = $3, sales = $4, total_volume = $5
		WHERE id = $1`,
		id, agg.TotalTransactions, agg.Purchases, agg.Sales, agg.TotalVolume)
	if err != nil {
		return fmt.Errorf("update ticker stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Trades ---

func (s *PostgresStore) InsertTrades(ctx context.Context, trades []models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
			INSERT INTO trades (legislator_id, ticker_id, transaction_date, disclosure_date,
				transaction_type, amount, owner, asset_description, asset_details, asset_type,
				comment, ptr_link, pdf)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT DO NOTHING`,
			t.LegislatorID, t.TickerID, t.TransactionDate, t.DisclosureDate,
			t.TransactionType, t.Amount, t.Owner, t.AssetDescription, t.AssetDetails, t.AssetType,
			t.Comment, t.PTRLink, t.PDF)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	created := 0
	for range trades {
		tag, err := res.Exec()
		if err != nil {
			return created, fmt.Errorf("insert trade: %w", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

const tradeColumns = `t.id, t.legislator_id, t.ticker_id, t.transaction_date, t.disclosure_date,
	t.transaction_type, t.amount, t.owner, t.asset_description, t.asset_details, t.asset_type,
	t.comment, t.ptr_link, t.pdf`

func (s *PostgresStore) Trades(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	query, args := buildTradeQuery(`SELECT `+tradeColumns, f)
	query += " ORDER BY t.transaction_date DESC, t.id"
	query += limitOffset(&args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		err := rows.Scan(&t.ID, &t.LegislatorID, &t.TickerID, &t.TransactionDate, &t.DisclosureDate,
			&t.TransactionType, &t.Amount, &t.Owner, &t.AssetDescription, &t.AssetDetails, &t.AssetType,
			&t.Comment, &t.PTRLink, &t.PDF)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountTrades(ctx context.Context, f TradeFilter) (int64, error) {
	query, args := buildTradeQuery(`SELECT COUNT(*)`, f)
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

func buildTradeQuery(selectClause string, f TradeFilter) (string, []any) {
	query := selectClause + ` FROM trades t`
	var where []string
	var args []any

	if f.TickerSymbol != "" {
		query += ` JOIN tickers tk ON tk.id = t.ticker_id`
		args = append(args, f.TickerSymbol)
		where = append(where, fmt.Sprintf("tk.symbol ILIKE $%d", len(args)))
	}
	if f.NameContains != "" {
		query += ` JOIN legislators l ON l.id = t.legislator_id`
		args = append(args, "%"+f.NameContains+"%")
		where = append(where, fmt.Sprintf("l.full_name ILIKE $%d", len(args)))
	}
	if f.LegislatorID != 0 {
		args = append(args, f.LegislatorID)
		where = append(where, fmt.Sprintf("t.legislator_id = $%d", len(args)))
	}
	if f.TickerID != 0 {
		args = append(args, f.TickerID)
		where = append(where, fmt.Sprintf("t.ticker_id = $%d", len(args)))
	}
	if f.TransactionType != "" {
		args = append(args, f.TransactionType)
		where = append(where, fmt.Sprintf("t.transaction_type = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("t.transaction_date > $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		where = append(where, fmt.Sprintf("t.transaction_date <= $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query, args
}

func limitOffset(args *[]any, limit, offset int) string {
	var clause string
	if limit > 0 {
		*args = append(*args, limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}

// --- Summary stats ---

func (s *PostgresStore) EnsureSummaryWindows(ctx context.Context, windows []int) error {
	for _, w := range windows {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO summary_stats (timeframe) VALUES ($1)
			ON CONFLICT (timeframe) DO NOTHING`, w)
		if err != nil {
			return fmt.Errorf("ensure summary window %d: %w", w, err)
		}
	}
	return nil
}

func (s *PostgresStore) SummaryStats(ctx context.Context) ([]models.SummaryStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, timeframe, total, purchases, sales, total_volume
		FROM summary_stats ORDER BY timeframe`)
	if err != nil {
		return nil, fmt.Errorf("query summary stats: %w", err)
	}
	defer rows.Close()

	var out []models.SummaryStat
	for rows.Next() {
		var st models.SummaryStat
		if err := rows.Scan(&st.ID, &st.Window, &st.Total, &st.Purchases, &st.Sales, &st.TotalVolume); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateSummaryStat(ctx context.Context, window int, total, purchases, sales int64, volume float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE summary_stats SET total = $2, purchases = $3, sales = $4, total_volume = $5
		WHERE timeframe = $1`,
		window, total, purchases, sales, volume)
	if err != nil {
		return fmt.Errorf("update summary stat %d: %w", window, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
