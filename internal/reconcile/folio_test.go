package reconcile

import "testing"

func TestNormalizeFolio(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips zero padding after prefix", "P077", "P77"},
		{"lowercase input uppercased", "p077", "P77"},
		{"surrounding whitespace trimmed", "  P134  ", "P134"},
		{"no padding unchanged", "P134", "P134"},
		{"multi letter prefix", "AB007", "AB7"},
		{"zero run in middle of digits kept", "P101", "P101"},
		{"digits only unchanged", "12345", "12345"},
		{"empty input", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFolio(tt.input); got != tt.want {
				t.Errorf("NormalizeFolio(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeFolioIdempotent(t *testing.T) {
	for _, folio := range []string{"P077", "p77", " AB0042 ", "X1"} {
		once := NormalizeFolio(folio)
		twice := NormalizeFolio(once)
		if once != twice {
			t.Errorf("NormalizeFolio not idempotent for %q: %q then %q", folio, once, twice)
		}
	}
}
