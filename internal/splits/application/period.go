package application

import (
	"errors"
	"strings"
	"time"

	splits "attorney-splits/internal/splits/domain"
)

// Period is a half-open month window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Label returns the YYYY-MM label of the period.
func (p Period) Label() string { return p.Start.Format("2006-01") }

// ParseMonth parses YYYY-MM. An empty month resolves to the month containing now.
func ParseMonth(month string, now time.Time) (Period, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return monthOf(now), nil
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return Period{}, splits.NewError(splits.KindInvalidInput, "month must be YYYY-MM", errors.New("splits: invalid month"))
	}
	return monthOf(t), nil
}

// PreviousMonth returns the month before the one containing now.
func PreviousMonth(now time.Time) Period {
	current := monthOf(now)
	return monthOf(current.Start.AddDate(0, -1, 0))
}

func monthOf(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
