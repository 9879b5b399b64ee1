package http

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"groupspend/internal/core"
)

func TestParseDateRange(t *testing.T) {
	// 01:00 on March 1st in UTC+2 is still February 29th in UTC.
	now := time.Date(2024, 3, 1, 1, 0, 0, 0, time.FixedZone("EET", 2*60*60))

	tests := []struct {
		name    string
		query   url.Values
		want    string
		wantErr error
	}{
		{"defaults to utc month", url.Values{}, "2024-02-01..2024-02-29", nil},
		{"explicit start", url.Values{"start": {"2024-02-10"}}, "2024-02-10..2024-02-29", nil},
		{"explicit bounds", url.Values{"start": {"2023-12-30"}, "end": {"2024-01-02"}}, "2023-12-30..2024-01-02", nil},
		{"too long", url.Values{"start": {"0002-01-01"}, "end": {"9999-12-31"}}, "", core.ErrInvalidRange},
		{"inverted", url.Values{"start": {"2024-02-10"}, "end": {"2024-02-01"}}, "", core.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDateRange(tt.query, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDateRange: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("range = %s, want %s", got, tt.want)
			}
		})
	}
}
