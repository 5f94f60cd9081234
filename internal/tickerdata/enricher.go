// Package tickerdata fetches company profiles for traded symbols from the
// Yahoo Finance quote summary API.
package tickerdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/captrades/captrades/internal/infra"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	quotePath      = "/v10/finance/quoteSummary/%s?modules=assetProfile,price"
	defaultRate    = 4 // max requests per second
)

// ErrNotFound indicates the API has no profile for a symbol.
var ErrNotFound = errors.New("tickerdata: symbol not found")

// Enrichment is a company profile for one symbol.
type Enrichment struct {
	Company   string
	Sector    string
	Industry  string
	MarketCap int64
	QuoteType string // EQUITY, ETF, MUTUALFUND, ...
}

// Enricher fetches enrichments with caching, rate limiting, and collapsing
// of concurrent lookups for the same symbol.
type Enricher struct {
	baseURL string
	cache   *infra.Cache
	limiter *infra.RateLimiter
	group   singleflight.Group
	log     zerolog.Logger
}

// NewEnricher creates an enricher against the given API base URL. An empty
// baseURL selects the public endpoint.
func NewEnricher(baseURL string, cacheTTL time.Duration, ratePerSec int, log zerolog.Logger) *Enricher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRate
	}
	return &Enricher{
		baseURL: baseURL,
		cache:   infra.NewCache(cacheTTL),
		limiter: infra.NewRateLimiter(ratePerSec, time.Second),
		log:     log.With().Str("component", "tickerdata").Logger(),
	}
}

// --- quote summary response types ---

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"quoteSummary"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteResult struct {
	AssetProfile struct {
		Sector   string `json:"sector"`
		Industry string `json:"industry"`
	} `json:"assetProfile"`
	Price struct {
		LongName  string    `json:"longName"`
		ShortName string    `json:"shortName"`
		QuoteType string    `json:"quoteType"`
		MarketCap rawNumber `json:"marketCap"`
	} `json:"price"`
}

type rawNumber struct {
	Raw int64 `json:"raw"`
}

// Lookup returns the profile for a symbol. Results are cached and
// concurrent lookups for the same symbol share one request.
func (e *Enricher) Lookup(ctx context.Context, symbol string) (*Enrichment, error) {
	cacheKey := "ticker:" + symbol
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached.(*Enrichment), nil
	}

	v, err, _ := e.group.Do(symbol, func() (any, error) {
		return e.fetch(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}

	enrichment := v.(*Enrichment)
	e.cache.Set(cacheKey, enrichment)
	return enrichment, nil
}

func (e *Enricher) fetch(ctx context.Context, symbol string) (*Enrichment, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := e.baseURL + fmt.Sprintf(quotePath, symbol)
	body, _, err := infra.DoGet(ctx, url, nil)
	if err != nil {
		var httpErr *infra.ErrHTTP
		if errors.As(err, &httpErr) && httpErr.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("quote summary %s: %w", symbol, err)
	}
	defer body.Close()

	var resp quoteSummaryResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse quote summary %s: %w", symbol, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote summary %s: %s", symbol, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, ErrNotFound
	}

	result := resp.QuoteSummary.Result[0]
	company := result.Price.LongName
	if company == "" {
		company = result.Price.ShortName
	}

	enrichment := &Enrichment{
		Company:   company,
		Sector:    result.AssetProfile.Sector,
		Industry:  trimIndustry(result.AssetProfile.Industry),
		MarketCap: result.Price.MarketCap.Raw,
		QuoteType: result.Price.QuoteType,
	}
	e.log.Debug().Str("symbol", symbol).Str("quote_type", enrichment.QuoteType).Msg("symbol enriched")
	return enrichment, nil
}

// trimIndustry keeps only the part before an em dash; the API qualifies some
// industries with a sub-segment after one.
func trimIndustry(industry string) string {
	if i := strings.Index(industry, "—"); i >= 0 {
		return strings.TrimSpace(industry[:i])
	}
	return industry
}
