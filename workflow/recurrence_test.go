package workflow

import (
	"testing"
	"time"

	"github.com/tradietrack/tradietrack_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the date math the
// recurrence runner advances series by; the materialization paths need MySQL
// and are covered by integration tests in an environment that can run docker.

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		name     string
		due      time.Time
		pattern  models.RecurrencePattern
		interval int
		expected time.Time
	}{
		{"weekly", date(2024, 1, 1), models.RecurrencePatternWeekly, 1, date(2024, 1, 8)},
		{"weekly every 2", date(2024, 1, 1), models.RecurrencePatternWeekly, 2, date(2024, 1, 15)},
		{"fortnightly", date(2024, 1, 1), models.RecurrencePatternFortnightly, 1, date(2024, 1, 15)},
		{"monthly", date(2024, 3, 15), models.RecurrencePatternMonthly, 1, date(2024, 4, 15)},
		{"monthly clamps to leap feb", date(2024, 1, 31), models.RecurrencePatternMonthly, 1, date(2024, 2, 29)},
		{"monthly clamps to short feb", date(2023, 1, 31), models.RecurrencePatternMonthly, 1, date(2023, 2, 28)},
		{"monthly clamps to 30-day month", date(2024, 3, 31), models.RecurrencePatternMonthly, 1, date(2024, 4, 30)},
		{"quarterly", date(2024, 1, 31), models.RecurrencePatternQuarterly, 1, date(2024, 4, 30)},
		{"quarterly every 2", date(2024, 1, 15), models.RecurrencePatternQuarterly, 2, date(2024, 7, 15)},
		{"yearly", date(2024, 6, 1), models.RecurrencePatternYearly, 1, date(2025, 6, 1)},
		{"yearly from leap day", date(2024, 2, 29), models.RecurrencePatternYearly, 1, date(2025, 2, 28)},
		{"year rollover", date(2024, 12, 31), models.RecurrencePatternMonthly, 1, date(2025, 1, 31)},
		{"zero interval treated as 1", date(2024, 1, 1), models.RecurrencePatternWeekly, 0, date(2024, 1, 8)},
	}

	for _, tc := range cases {
		got := NextOccurrence(tc.due, tc.pattern, tc.interval)
		if !got.Equal(tc.expected) {
			t.Fatalf("%s: NextOccurrence(%s, %s, %d) expected %s, got %s",
				tc.name, tc.due.Format("2006-01-02"), tc.pattern, tc.interval,
				tc.expected.Format("2006-01-02"), got.Format("2006-01-02"))
		}
	}
}

func TestNextOccurrence_PreservesTimeOfDay(t *testing.T) {
	due := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)
	got := NextOccurrence(due, models.RecurrencePatternMonthly, 1)
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Fatalf("expected time of day preserved, got %s", got.Format(time.RFC3339))
	}
	if got.Day() != 29 || got.Month() != time.February {
		t.Fatalf("expected 2024-02-29, got %s", got.Format("2006-01-02"))
	}
}

func TestSeriesCompleted(t *testing.T) {
	end := date(2024, 1, 10)

	if seriesCompleted(date(2024, 1, 8), nil) {
		t.Fatal("series without an end date must never complete")
	}
	if seriesCompleted(date(2024, 1, 10), &end) {
		t.Fatal("a next date equal to the end date is still inside the series")
	}
	if !seriesCompleted(date(2024, 1, 15), &end) {
		t.Fatal("a next date past the end date must complete the series")
	}
}

// A weekly-every-2 series starting 2024-01-01 with end date 2024-01-10 fires
// once at the start date, then completes: the next occurrence (2024-01-15)
// falls past the end date.
func TestSeries_SingleOccurrenceThenCompleted(t *testing.T) {
	start := date(2024, 1, 1)
	end := date(2024, 1, 10)

	next := NextOccurrence(start, models.RecurrencePatternWeekly, 2)
	if !next.Equal(date(2024, 1, 15)) {
		t.Fatalf("expected next occurrence 2024-01-15, got %s", next.Format("2006-01-02"))
	}
	if !seriesCompleted(next, &end) {
		t.Fatal("expected series to complete after the first occurrence")
	}
}
