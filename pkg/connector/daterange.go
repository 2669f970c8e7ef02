package connector

import (
	"log/slog"
	"time"
)

// DateRange is the normalized window a FullLister receives. A zero Start or
// End means "open" on that side (the adapter's own ListFull decides what
// that means — whole history, or nothing prior to attach).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// isUndefinedDate recognizes the sentinel values callers may pass instead
// of omitting the field entirely.
func isUndefinedDate(s string) bool {
	return s == "" || s == "undefined"
}

// ResolveDateRange applies the date-range policy: missing/sentinel dates
// fall back to (lastIndexedAt, now) or (now-365d, now) with no prior sync;
// calendar-like adapters may have a future end-date; everything else clamps
// to now; inverted ranges are dropped with a warning rather than an error.
func ResolveDateRange(startRaw, endRaw string, lastIndexedAt *time.Time, now time.Time, allowFutureEnd bool) DateRange {
	var start, end time.Time
	var err error

	if !isUndefinedDate(startRaw) {
		start, err = time.Parse(time.RFC3339, startRaw)
		if err != nil {
			slog.Warn("connector: malformed start date, falling back", "raw", startRaw, "error", err)
			start = time.Time{}
		}
	}
	if start.IsZero() {
		if lastIndexedAt != nil {
			start = *lastIndexedAt
		} else {
			start = now.AddDate(0, 0, -365)
		}
	}

	if !isUndefinedDate(endRaw) {
		end, err = time.Parse(time.RFC3339, endRaw)
		if err != nil {
			slog.Warn("connector: malformed end date, falling back to now", "raw", endRaw, "error", err)
			end = time.Time{}
		}
	}
	if end.IsZero() {
		end = now
	}
	if !allowFutureEnd && end.After(now) {
		end = now
	}

	if end.Before(start) {
		slog.Warn("connector: inverted date range dropped", "start", start, "end", end)
		return DateRange{}
	}
	return DateRange{Start: start, End: end}
}
