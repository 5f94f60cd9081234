// Package roster loads the congressional membership roster from the
// unitedstates-project datasets.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/captrades/captrades/internal/infra"
	"github.com/captrades/captrades/internal/store"
	"github.com/captrades/captrades/pkg/models"
)

const (
	defaultCurrentURL    = "https://theunitedstates.io/congress-legislators/legislators-current.json"
	defaultHistoricalURL = "https://theunitedstates.io/congress-legislators/legislators-historical.json"
	defaultImageBaseURL  = "https://theunitedstates.io/images/congress/225x275/"

	// Disclosure filings only reach back to 2012; members whose service
	// ended before that can never appear in one.
	cutoffYear = 2012
)

// Options configures a Loader. Zero-value URLs select the public datasets.
type Options struct {
	CurrentURL    string
	HistoricalURL string
	ImageBaseURL  string
	// VerifyImages probes each portrait URL and blanks URLs that 404.
	// Off by default: it costs one request per member.
	VerifyImages bool
}

// Loader fetches the membership datasets and upserts them into the store.
type Loader struct {
	opts  Options
	store store.Store
	log   zerolog.Logger
}

// NewLoader creates a loader with the given options.
func NewLoader(opts Options, st store.Store, log zerolog.Logger) *Loader {
	if opts.CurrentURL == "" {
		opts.CurrentURL = defaultCurrentURL
	}
	if opts.HistoricalURL == "" {
		opts.HistoricalURL = defaultHistoricalURL
	}
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = defaultImageBaseURL
	}
	if !strings.HasSuffix(opts.ImageBaseURL, "/") {
		opts.ImageBaseURL += "/"
	}
	return &Loader{
		opts:  opts,
		store: st,
		log:   log.With().Str("component", "roster").Logger(),
	}
}

// --- dataset types ---

type rosterEntry struct {
	ID struct {
		Bioguide string `json:"bioguide"`
	} `json:"id"`
	Name struct {
		First        string `json:"first"`
		Last         string `json:"last"`
		OfficialFull string `json:"official_full"`
	} `json:"name"`
	Terms []rosterTerm `json:"terms"`
}

type rosterTerm struct {
	Type  string `json:"type"`
	State string `json:"state"`
	Party string `json:"party"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Refresh downloads the current and historical datasets concurrently and
// upserts every member still relevant to the disclosure record. It returns
// the number of members upserted.
func (l *Loader) Refresh(ctx context.Context) (int, error) {
	var current, historical []rosterEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = l.fetchDataset(gctx, l.opts.CurrentURL)
		return err
	})
	g.Go(func() error {
		var err error
		historical, err = l.fetchDataset(gctx, l.opts.HistoricalURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n, err := l.load(ctx, append(current, historical...))
	if err != nil {
		return 0, err
	}
	l.log.Info().Int("members", n).Msg("roster refreshed")
	return n, nil
}

// LoadFile upserts members from a dataset file in the same JSON format as
// the published datasets.
func (l *Loader) LoadFile(ctx context.Context, r io.Reader) (int, error) {
	var entries []rosterEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decode roster file: %w", err)
	}
	return l.load(ctx, entries)
}

func (l *Loader) fetchDataset(ctx context.Context, url string) ([]rosterEntry, error) {
	body, _, err := infra.DoGet(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch roster %s: %w", url, err)
	}
	defer body.Close()

	var entries []rosterEntry
	if err := json.NewDecoder(body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", url, err)
	}
	return entries, nil
}

func (l *Loader) load(ctx context.Context, entries []rosterEntry) (int, error) {
	var members []models.Legislator
	for _, entry := range entries {
		member, ok := l.convert(ctx, entry)
		if !ok {
			continue
		}
		members = append(members, member)
	}

	if err := l.store.UpsertLegislators(ctx, members); err != nil {
		return 0, fmt.Errorf("upsert roster: %w", err)
	}
	return len(members), nil
}

// convert maps a dataset entry onto a legislator. Entries with no terms or
// whose service ended before filings existed are dropped.
func (l *Loader) convert(ctx context.Context, entry rosterEntry) (models.Legislator, bool) {
	if entry.ID.Bioguide == "" || len(entry.Terms) == 0 {
		return models.Legislator{}, false
	}

	last := entry.Terms[len(entry.Terms)-1]
	if endYear(last.End) < cutoffYear {
		return models.Legislator{}, false
	}

	fullName := entry.Name.OfficialFull
	if fullName == "" {
		fullName = entry.Name.First + " " + entry.Name.Last
	}

	party := last.Party
	if party == "" {
		party = "Unknown"
	}

	chamber := "House"
	if last.Type == "sen" {
		chamber = "Senator"
	}

	terms := make([]models.Term, 0, len(entry.Terms))
	for _, t := range entry.Terms {
		terms = append(terms, models.Term{
			Type:  t.Type,
			State: t.State,
			Party: t.Party,
			Start: t.Start,
			End:   t.End,
		})
	}

	return models.Legislator{
		Bioguide:  entry.ID.Bioguide,
		FirstName: entry.Name.First,
		LastName:  entry.Name.Last,
		FullName:  fullName,
		Party:     party,
		Chamber:   chamber,
		State:     stateNames[last.State],
		Image:     l.portraitURL(ctx, entry.ID.Bioguide),
		Terms:     terms,
	}, true
}

func (l *Loader) portraitURL(ctx context.Context, bioguide string) string {
	url := l.opts.ImageBaseURL + bioguide + ".jpg"
	if !l.opts.VerifyImages {
		return url
	}

	body, _, err := infra.DoGet(ctx, url, nil)
	if err != nil {
		return ""
	}
	drainClose(body)
	return url
}

func drainClose(rc io.ReadCloser) {
	io.Copy(io.Discard, rc) //nolint:errcheck
	rc.Close()
}

func endYear(end string) int {
	if len(end) < 4 {
		return 0
	}
	year, err := strconv.Atoi(end[:4])
	if err != nil {
		return 0
	}
	return year
}

// stateNames expands the dataset's postal codes, territories included.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AS": "American Samoa", "AZ": "Arizona",
	"AR": "Arkansas", "CA": "California", "CO": "Colorado", "CT": "Connecticut",
	"DC": "District of Columbia", "DE": "Delaware", "FL": "Florida",
	"GA": "Georgia", "GU": "Guam", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana",
	"MP": "Northern Mariana Islands", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota",
	"OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania",
	"PR": "Puerto Rico", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "VI": "Virgin Islands",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin",
	"WY": "Wyoming",
}
