package domain

import (
	"fmt"
	"time"
)

// ParseDateRange reads optional YYYY-MM-DD start and end bounds into a
// half-open range. end is inclusive, so it comes back as the following
// midnight. An empty bound is returned as the zero time.
func ParseDateRange(startStr, endStr string) (start, end time.Time, err error) {
	if startStr != "" {
		start, err = time.Parse(time.DateOnly, startStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date %q, want YYYY-MM-DD", startStr)
		}
	}
	if endStr != "" {
		end, err = time.Parse(time.DateOnly, endStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date %q, want YYYY-MM-DD", endStr)
		}
		end = end.AddDate(0, 0, 1)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return start, end, fmt.Errorf("start date %s is after end date %s", startStr, endStr)
	}
	return start, end, nil
}
