package connector

import (
	"testing"
)

func TestNewSlackAdapterRequiresAccessToken(t *testing.T) {
	_, err := NewSlackAdapter(map[string]any{"channel": "C123"})
	if err == nil {
		t.Fatal("expected error when access_token is missing")
	}
}

func TestNewSlackAdapterSucceedsWithToken(t *testing.T) {
	a, err := NewSlackAdapter(map[string]any{"access_token": "xoxb-test", "channel": "C123"})
	if err != nil {
		t.Fatalf("expected adapter to build, got %v", err)
	}
	if a.Type() != "slack" {
		t.Fatalf("unexpected type %v", a.Type())
	}
}

func TestTruncateTitleClampsLongText(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := truncateTitle(long)
	if len(got) != 80 {
		t.Fatalf("expected truncated title of length 80, got %d", len(got))
	}
}

func TestTruncateTitleCollapsesNewlines(t *testing.T) {
	got := truncateTitle("line one\nline two")
	if got != "line one line two" {
		t.Fatalf("expected newlines collapsed to spaces, got %q", got)
	}
}
