package efd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

const reportHTML = `<html><body>
<table class="table">
<tr><th>#</th><th>Transaction Date</th><th>Owner</th><th>Ticker</th><th>Asset Name</th><th>Asset Type</th><th>Type</th><th>Amount</th><th>Comment</th></tr>
<tr>
  <td>1</td>
  <td>03/10/2026</td>
  <td>Self</td>
  <td><a href="https://finance.yahoo.com/q?s=AAPL">AAPL</a></td>
  <td>Apple Inc.</td>
  <td>Stock</td>
  <td>Purchase</td>
  <td>$1,001 - $15,000</td>
  <td>--</td>
</tr>
<tr>
  <td>2</td>
  <td>03/11/2026</td>
  <td>Spouse</td>
  <td>--</td>
  <td>JPMorgan Chase &amp; Co. Notes
    <div class="text-muted">Rates/Matures: 4.625%/11/13/2031</div>
  </td>
  <td>Corporate Bond</td>
  <td>Sale (Full)</td>
  <td>$15,001 - $50,000</td>
  <td>--</td>
</tr>
</table>
</body></html>`

// fakePortal mimics the disclosure portal: a CSRF cookie on the home page,
// rotated after the agreement POST, a paginated search endpoint, and filing
// pages behind token POSTs.
type fakePortal struct {
	mu         sync.Mutex
	offsets    []int
	agreed     bool
	failFiling bool
}

func (p *fakePortal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /search/home/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "unvalidated", Path: "/"})
	})

	mux.HandleFunc("POST /search/home/", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("prohibition_agreement") != "1" {
			t.Errorf("agreement POST missing prohibition_agreement, got form %v", r.Form)
		}
		if r.FormValue("csrfmiddlewaretoken") != "unvalidated" {
			t.Errorf("agreement POST sent token %q", r.FormValue("csrfmiddlewaretoken"))
		}
		p.mu.Lock()
		p.agreed = true
		p.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "validated", Path: "/"})
	})

	mux.HandleFunc("POST /search/report/data/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("csrfmiddlewaretoken"); got != "validated" {
			t.Errorf("search POST sent token %q, want validated", got)
		}
		if got := r.FormValue("report_types"); got != "[11]" {
			t.Errorf("report_types = %q", got)
		}
		if got := r.FormValue("submitted_start_date"); got != "01/01/2012 00:00:00" {
			t.Errorf("submitted_start_date = %q", got)
		}

		start, _ := strconv.Atoi(r.FormValue("start"))
		p.mu.Lock()
		p.offsets = append(p.offsets, start)
		p.mu.Unlock()

		var data [][]string
		switch start {
		case 0:
			data = [][]string{{
				"03/14/2026", "PTR",
				"Collins, Susan M. (Senator)",
				`<a href="/search/view/ptr/abc123/" target="_blank">View</a>`,
				"03/14/2026",
			}}
		case 100:
			data = [][]string{{
				"03/12/2026", "PTR",
				"Tuberville, Tommy (Senator)",
				`<a href="/search/view/paper/xyz789/" target="_blank">View</a>`,
				"03/12/2026",
			}}
		case 200:
			// Last page of a 250-record result set.
		default:
			t.Errorf("unexpected search offset %d", start)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":         data,
			"recordsTotal": 250,
		})
	})

	mux.HandleFunc("POST /search/view/ptr/abc123/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("csrfmiddlewaretoken"); got != "validated" {
			t.Errorf("report POST sent token %q, want validated", got)
		}
		if p.failFiling {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, reportHTML)
	})

	return mux
}

func TestFetchSince(t *testing.T) {
	portal := &fakePortal{}
	srv := httptest.NewServer(portal.handler(t))
	defer srv.Close()

	session := NewSession(srv.URL, zerolog.Nop())
	scraper := NewScraper(session, 0, zerolog.Nop())

	records, err := scraper.FetchSince(context.Background(), "01/01/2012", "")
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}

	if !portal.agreed {
		t.Fatal("agreement was never posted")
	}

	// 250 total records at page size 100 means offsets 0, 100 and 200.
	wantOffsets := []int{0, 100, 200}
	if len(portal.offsets) != len(wantOffsets) {
		t.Fatalf("visited offsets %v, want %v", portal.offsets, wantOffsets)
	}
	for i, want := range wantOffsets {
		if portal.offsets[i] != want {
			t.Fatalf("visited offsets %v, want %v", portal.offsets, wantOffsets)
		}
	}

	// Two rows from the electronic filing plus one paper marker.
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	first := records[0]
	if first.Name != "Collins, Susan M. (Senator)" {
		t.Errorf("name = %q", first.Name)
	}
	if first.NotificationDate != "03/14/2026" {
		t.Errorf("notification date = %q", first.NotificationDate)
	}
	if first.Link != srv.URL+"/search/view/ptr/abc123/" {
		t.Errorf("link = %q", first.Link)
	}
	if first.TransactionDate != "03/10/2026" || first.Owner != "Self" {
		t.Errorf("row fields = %q %q", first.TransactionDate, first.Owner)
	}
	if first.Ticker.Text != "AAPL" || first.Ticker.Href != "https://finance.yahoo.com/q?s=AAPL" {
		t.Errorf("ticker cell = %+v", first.Ticker)
	}
	if first.AssetName.Text != "Apple Inc." || len(first.AssetName.Subtext) != 0 {
		t.Errorf("asset cell = %+v", first.AssetName)
	}
	if first.AssetType != "Stock" || first.Type != "Purchase" || first.Amount != "$1,001 - $15,000" {
		t.Errorf("row = %+v", first)
	}

	second := records[1]
	if second.Ticker.Text != "--" || second.Ticker.Href != "" {
		t.Errorf("tickerless cell = %+v", second.Ticker)
	}
	if second.AssetName.Text != "JPMorgan Chase & Co. Notes" {
		t.Errorf("asset name = %q", second.AssetName.Text)
	}
	if len(second.AssetName.Subtext) != 1 || second.AssetName.Subtext[0] != "Rates/Matures: 4.625%/11/13/2031" {
		t.Errorf("asset subtext = %v", second.AssetName.Subtext)
	}
	if second.Type != "Sale (Full)" {
		t.Errorf("type = %q", second.Type)
	}

	paper := records[2]
	if !paper.Paper {
		t.Fatalf("expected paper marker, got %+v", paper)
	}
	if paper.Name != "Tuberville, Tommy (Senator)" {
		t.Errorf("paper name = %q", paper.Name)
	}
	if paper.Link != srv.URL+"/search/view/paper/xyz789/" {
		t.Errorf("paper link = %q", paper.Link)
	}
	if paper.TransactionDate != "" || paper.Amount != "" {
		t.Errorf("paper record carries transaction fields: %+v", paper)
	}
}

func TestFetchSinceAbortsOnFilingFailure(t *testing.T) {
	portal := &fakePortal{failFiling: true}
	srv := httptest.NewServer(portal.handler(t))
	defer srv.Close()

	session := NewSession(srv.URL, zerolog.Nop())
	scraper := NewScraper(session, 0, zerolog.Nop())

	records, err := scraper.FetchSince(context.Background(), "01/01/2012", "")
	if err == nil {
		t.Fatal("expected error when a filing page fails")
	}
	if len(records) != 0 {
		t.Fatalf("got %d records alongside the error, want none", len(records))
	}
}

func TestAgreeWithoutCookieFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never sets the csrf cookie.
	}))
	defer srv.Close()

	session := NewSession(srv.URL, zerolog.Nop())
	if err := session.Agree(context.Background()); err != ErrNoToken {
		t.Fatalf("got %v, want ErrNoToken", err)
	}
}
