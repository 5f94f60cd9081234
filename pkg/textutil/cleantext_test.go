package textutil

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Apple Inc.", "Apple Inc."},
		{"brackets removed", "Apple [AAPL] Inc.", "Apple Inc."},
		{"tags removed", "Apple <em>Inc.</em>", "Apple Inc."},
		{"newlines and tabs", "Apple\nInc.\tCommon\nStock", "Apple Inc. Common Stock"},
		{"whitespace collapsed", "Apple    Inc.   Common  Stock", "Apple Inc. Common Stock"},
		{"trimmed", "   Apple Inc.  ", "Apple Inc."},
		{"combined", " [ST]\tApple\n<div class=\"x\">Inc.</div>  ", "Apple Inc."},
		{"empty", "", ""},
		{"only noise", "[x]<b>\n\t", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanTextDeterministic(t *testing.T) {
	in := "Exxon [XOM]\n\tMobil   Corp"
	first := CleanText(in)
	for i := 0; i < 3; i++ {
		if got := CleanText(in); got != first {
			t.Fatalf("CleanText not deterministic: %q vs %q", got, first)
		}
	}
}
