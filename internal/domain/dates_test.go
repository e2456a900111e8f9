package domain

import (
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "open"},
		{name: "start only", start: "2024-03-01", wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "end is inclusive", end: "2024-03-31", wantEnd: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{name: "single day", start: "2024-03-05", end: "2024-03-05",
			wantStart: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), wantEnd: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
		{name: "bad start", start: "03/01/2024", wantErr: true},
		{name: "bad end", end: "tomorrow", wantErr: true},
		{name: "inverted", start: "2024-03-10", end: "2024-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ParseDateRange(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDateRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("ParseDateRange() = %v, %v, want %v, %v", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
