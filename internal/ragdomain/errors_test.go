package ragdomain

import (
	"errors"
	"testing"
)

func TestError_MessageIncludesCauseWhenPresent(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := New(KindTransportError, "Fetch", "request failed", cause)
	if got := err.Error(); got != "Fetch: request failed: boom" {
		t.Fatalf("unexpected message: %q", got)
	}

	noCause := New(KindNotFound, "Get", "missing", nil)
	if got := noCause.Error(); got != "Get: missing" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestError_UnwrapExposesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := New(KindTransportError, "Fetch", "request failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestError_IsComparesByKind(t *testing.T) {
	t.Parallel()
	err := New(KindNotFound, "GetDocument", "no such document", errors.New("pg: no rows"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is to match on Kind against the sentinel")
	}
	if errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected errors.Is not to match a different Kind")
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	if got := KindOf(New(KindModelError, "op", "msg", nil)); got != KindModelError {
		t.Fatalf("KindOf() = %q, want %q", got, KindModelError)
	}
	if got := KindOf(errors.New("plain error")); got != "" {
		t.Fatalf("KindOf() on a non-domain error = %q, want empty", got)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind ErrKind
		want bool
	}{
		{KindTransportError, true},
		{KindModelError, true},
		{KindNotFound, false},
		{KindParseError, false},
	}
	for _, tt := range tests {
		err := New(tt.kind, "op", "msg", nil)
		if got := Retryable(err); got != tt.want {
			t.Fatalf("Retryable(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate should leave short strings untouched, got %q", got)
	}
	got := Truncate("this is a long message", 10)
	if got != "this is a …" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
