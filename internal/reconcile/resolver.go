// Package reconcile turns scraped filing rows into stored trades tied to
// known legislators and tickers.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/captrades/captrades/internal/store"
	"github.com/captrades/captrades/pkg/models"
)

// ErrNoMatch indicates a filer name matched nobody on the roster.
var ErrNoMatch = errors.New("reconcile: no matching legislator")

// Filer names carry a trailing parenthesized role, e.g. "(Senator)".
var roleSuffixRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// NormalizeFilerName strips the role suffix and rotates "Last, First" into
// "First Last".
func NormalizeFilerName(raw string) string {
	name := roleSuffixRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if i := strings.Index(name, ","); i >= 0 {
		last := strings.TrimSpace(name[:i])
		first := strings.TrimSpace(name[i+1:])
		name = first + " " + last
	}
	return strings.Join(strings.Fields(name), " ")
}

// Resolver matches filer names against the roster. It never creates
// legislators: a filer that matches nobody stays unresolved so that roster
// gaps surface instead of spawning duplicate records.
type Resolver struct {
	store store.Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve finds the legislator a filer name refers to. Matching tries the
// full normalized name first, then the first and last name tokens.
func (r *Resolver) Resolve(ctx context.Context, filerName string) (*models.Legislator, error) {
	name := NormalizeFilerName(filerName)
	if name == "" {
		return nil, fmt.Errorf("%w: empty filer name", ErrNoMatch)
	}

	tokens := []string{name}
	if fields := strings.Fields(name); len(fields) > 1 {
		tokens = append(tokens, fields[0], fields[len(fields)-1])
	}

	l, err := r.store.MatchLegislator(ctx, tokens)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, filerName)
	}
	return l, err
}
