package efd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/captrades/captrades/pkg/models"
	"github.com/captrades/captrades/pkg/textutil"
)

const (
	// reportTypePTR selects periodic transaction reports in the portal's
	// search form.
	reportTypePTR = 11
	pageSize      = 100
)

// Scraper pulls periodic transaction reports through an agreed session.
type Scraper struct {
	session *Session
	delay   time.Duration
	log     zerolog.Logger
}

// NewScraper wraps a session. delay is the pause between per-filing fetches,
// keeping the crawl polite.
func NewScraper(session *Session, delay time.Duration, log zerolog.Logger) *Scraper {
	return &Scraper{
		session: session,
		delay:   delay,
		log:     log.With().Str("component", "efd").Logger(),
	}
}

type searchResponse struct {
	Data         [][]string `json:"data"`
	RecordsTotal int        `json:"recordsTotal"`
}

// FetchSince returns every transaction row from reports submitted on or
// after startDate (MM/DD/YYYY), optionally restricted to filers whose last
// name matches lastName. Paper filings come back as single records flagged
// Paper with no transaction fields. Any network or parse failure aborts the
// crawl with an error rather than returning a partial result.
func (s *Scraper) FetchSince(ctx context.Context, startDate, lastName string) ([]models.RawRecord, error) {
	if err := s.session.Agree(ctx); err != nil {
		return nil, err
	}

	var out []models.RawRecord
	start := 0
	for {
		page, err := s.searchPage(ctx, start, startDate, lastName)
		if err != nil {
			return nil, fmt.Errorf("search page at offset %d: %w", start, err)
		}
		s.log.Debug().
			Int("offset", start).
			Int("records", len(page.Data)).
			Int("total", page.RecordsTotal).
			Msg("search page fetched")

		for _, rec := range page.Data {
			records, err := s.processFiling(ctx, rec)
			if err != nil {
				// Downstream ingestion is idempotent, so the caller can
				// retry the whole range rather than work from a partial
				// crawl.
				return nil, fmt.Errorf("filing at offset %d: %w", start, err)
			}
			out = append(out, records...)
		}

		// The result set is paginated in blocks of 100; the portal reports
		// the total on every page, so the bound is re-derived each time in
		// case filings land mid-crawl.
		bound := (page.RecordsTotal + pageSize - 1) / pageSize * pageSize
		start += pageSize
		if start >= bound {
			break
		}
	}
	return out, nil
}

func (s *Scraper) searchPage(ctx context.Context, start int, startDate, lastName string) (*searchResponse, error) {
	form := url.Values{
		"start":                {strconv.Itoa(start)},
		"report_types":         {fmt.Sprintf("[%d]", reportTypePTR)},
		"submitted_start_date": {startDate + " 00:00:00"},
		"last_name":            {lastName},
		"length":               {strconv.Itoa(pageSize)},
		"csrfmiddlewaretoken":  {s.session.token},
	}

	body, err := s.session.postForm(ctx, searchPath, form, s.session.baseURL+homePath)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp searchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &resp, nil
}

// processFiling expands one search-result row into transaction records. Each
// row is a list of rendered cells; the filer name, report link, and
// notification date sit at fixed positions.
func (s *Scraper) processFiling(ctx context.Context, rec []string) ([]models.RawRecord, error) {
	if len(rec) < 5 {
		return nil, fmt.Errorf("malformed search row with %d cells", len(rec))
	}
	name := textutil.CleanText(rec[2])
	notification := textutil.CleanText(rec[4])

	href, err := anchorHref(rec[3])
	if err != nil {
		return nil, fmt.Errorf("report link for %q: %w", name, err)
	}

	// Scanned paper filings have no scrapable table.
	if strings.Contains(href, "paper") {
		return []models.RawRecord{{
			Name:             name,
			NotificationDate: notification,
			Link:             s.session.baseURL + href,
			Paper:            true,
		}}, nil
	}

	records, err := s.fetchReport(ctx, href, name, notification)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", href, err)
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return records, nil
}

// fetchReport posts the token to a filing page and parses its transaction
// table.
func (s *Scraper) fetchReport(ctx context.Context, href, name, notification string) ([]models.RawRecord, error) {
	reportURL := s.session.baseURL + href
	form := url.Values{"csrfmiddlewaretoken": {s.session.token}}

	body, err := s.session.postForm(ctx, href, form, s.session.baseURL+searchPath)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse report page: %w", err)
	}

	var records []models.RawRecord
	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		// Row zero is the header.
		if i == 0 {
			return
		}
		rec := models.RawRecord{
			Name:             name,
			NotificationDate: notification,
			Link:             reportURL,
		}
		parseRow(row, &rec)
		records = append(records, rec)
	})
	return records, nil
}

// parseRow fills a record from a transaction table row. The first column is
// the filing's row counter and is dropped; the ticker and asset-name cells
// carry structure the rest do not.
func parseRow(row *goquery.Selection, rec *models.RawRecord) {
	row.Find("td").Each(func(i int, td *goquery.Selection) {
		switch i {
		case 1:
			rec.TransactionDate = textutil.CleanText(td.Text())
		case 2:
			rec.Owner = textutil.CleanText(td.Text())
		case 3:
			rec.Ticker = parseTickerCell(td)
		case 4:
			rec.AssetName = parseAssetCell(td)
		case 5:
			rec.AssetType = textutil.CleanText(td.Text())
		case 6:
			rec.Type = textutil.CleanText(td.Text())
		case 7:
			rec.Amount = textutil.CleanText(td.Text())
		case 8:
			rec.Comment = textutil.CleanText(td.Text())
		}
	})
}

// parseTickerCell keeps the quote link when the cell has one.
func parseTickerCell(td *goquery.Selection) models.TickerCell {
	if a := td.Find("a"); a.Length() > 0 {
		href, _ := a.Attr("href")
		return models.TickerCell{
			Text: strings.TrimSpace(a.Text()),
			Href: href,
		}
	}
	return models.TickerCell{Text: textutil.CleanText(td.Text())}
}

// parseAssetCell separates the asset name from the muted detail lines some
// cells nest under it (bond rates and maturities, option strikes).
func parseAssetCell(td *goquery.Selection) models.AssetCell {
	muted := td.Find("div.text-muted")
	if muted.Length() == 0 {
		return models.AssetCell{Text: textutil.CleanText(td.Text())}
	}

	main := td.Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == "#text"
	}).First().Text()

	cell := models.AssetCell{Text: strings.TrimSpace(main)}
	muted.Each(func(_ int, div *goquery.Selection) {
		cell.Subtext = append(cell.Subtext, textutil.CleanText(div.Text()))
	})
	return cell
}

// anchorHref extracts the href from a rendered anchor cell.
func anchorHref(cell string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cell))
	if err != nil {
		return "", err
	}
	href, ok := doc.Find("a").Attr("href")
	if !ok {
		return "", fmt.Errorf("no anchor in cell %q", cell)
	}
	return href, nil
}
