package connector

import (
	"testing"
	"time"
)

func TestResolveDateRangeFallsBackToLastIndexedAt(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	last := now.AddDate(0, 0, -7)
	r := ResolveDateRange("", "", &last, now, false)
	if !r.Start.Equal(last) {
		t.Fatalf("expected start to fall back to last indexed time, got %v", r.Start)
	}
	if !r.End.Equal(now) {
		t.Fatalf("expected end to fall back to now, got %v", r.End)
	}
}

func TestResolveDateRangeFallsBackTo365DaysWithNoPriorSync(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	r := ResolveDateRange("undefined", "", nil, now, false)
	expectedStart := now.AddDate(0, 0, -365)
	if !r.Start.Equal(expectedStart) {
		t.Fatalf("expected start 365 days back, got %v want %v", r.Start, expectedStart)
	}
}

func TestResolveDateRangeClampsFutureEndByDefault(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 30).Format(time.RFC3339)
	r := ResolveDateRange("", future, nil, now, false)
	if !r.End.Equal(now) {
		t.Fatalf("expected future end date clamped to now, got %v", r.End)
	}
}

func TestResolveDateRangeAllowsFutureEndForCalendarAdapters(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 30)
	r := ResolveDateRange("", future.Format(time.RFC3339), nil, now, true)
	if !r.End.Equal(future) {
		t.Fatalf("expected future end date preserved for calendar adapters, got %v", r.End)
	}
}

func TestResolveDateRangeDropsInvertedRangeWithoutError(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	start := now.Format(time.RFC3339)
	end := now.AddDate(0, 0, -10).Format(time.RFC3339)
	r := ResolveDateRange(start, end, nil, now, false)
	if !r.Start.IsZero() || !r.End.IsZero() {
		t.Fatalf("expected zero-value range for inverted dates, got %+v", r)
	}
}
