package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in         string
		production bool
		want       zerolog.Level
		known      bool
	}{
		{"debug", false, zerolog.DebugLevel, true},
		{"warning", false, zerolog.WarnLevel, true},
		{"disabled", true, zerolog.Disabled, true},
		{"", false, zerolog.InfoLevel, true},
		{"", true, zerolog.WarnLevel, true},
		{"chatty", false, zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, known := ParseLevel(tt.in, tt.production)
			if got != tt.want || known != tt.known {
				t.Fatalf("ParseLevel(%q, %v) = (%v, %v), want (%v, %v)", tt.in, tt.production, got, known, tt.want, tt.known)
			}
		})
	}
}
