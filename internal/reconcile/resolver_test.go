package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/captrades/captrades/internal/store"
	"github.com/captrades/captrades/pkg/models"
)

func TestNormalizeFilerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Collins, Susan M. (Senator)", "Susan M. Collins"},
		{"Tuberville, Tommy (Senator)", "Tommy Tuberville"},
		{"Susan Collins", "Susan Collins"},
		{"  Warren,   Elizabeth  ", "Elizabeth Warren"},
		{"Hagerty, Bill (Former Senator)", "Bill Hagerty"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeFilerName(tt.in); got != tt.want {
			t.Errorf("NormalizeFilerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	err := s.UpsertLegislators(ctx, []models.Legislator{
		{Bioguide: "C001035", FirstName: "Susan", LastName: "Collins", FullName: "Susan Collins"},
		{Bioguide: "T000278", FirstName: "Tommy", LastName: "Tuberville", FullName: "Tommy Tuberville"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := NewResolver(s)

	// The full name with a middle initial misses; the last-name token hits.
	l, err := r.Resolve(ctx, "Collins, Susan M. (Senator)")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if l.Bioguide != "C001035" {
		t.Errorf("resolved %q", l.FullName)
	}

	if _, err := r.Resolve(ctx, "Pelosi, Nancy (Representative)"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("unknown filer: got %v, want ErrNoMatch", err)
	}

	if _, err := r.Resolve(ctx, "(Senator)"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("empty name: got %v, want ErrNoMatch", err)
	}
}
