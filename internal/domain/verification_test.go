package domain

import (
	"testing"
	"time"
)

func TestExpiredAt_BoundaryIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"before deadline", now.Add(time.Second), false},
		{"exactly at deadline", now, true},
		{"after deadline", now.Add(-time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExpiredAt(tc.expiresAt, now); got != tc.want {
				t.Fatalf("ExpiredAt(%v, %v) = %v, want %v", tc.expiresAt, now, got, tc.want)
			}
		})
	}
}

func TestFormatCode_ZeroPads(t *testing.T) {
	cases := map[int]string{
		0:    "0000",
		7:    "0007",
		42:   "0042",
		999:  "0999",
		9999: "9999",
	}
	for n, want := range cases {
		if got := FormatCode(n); got != want {
			t.Fatalf("FormatCode(%d) = %q, want %q", n, got, want)
		}
	}
}
