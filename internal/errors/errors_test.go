package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestParleyError_Error(t *testing.T) {
	err := New(CodeStoreUnavailable, "database unreachable")
	want := "[STORE_UNAVAILABLE] database unreachable"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	wrapped := Wrap(CodeCorruptData, "bad thread file", fmt.Errorf("unexpected EOF"))
	want = "[CORRUPT_DATA] bad thread file: unexpected EOF"
	if wrapped.Error() != want {
		t.Errorf("expected %q, got %q", want, wrapped.Error())
	}
}

func TestParleyError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap(CodeStoreUnavailable, "save failed", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to match wrapped error")
	}
}

func TestParleyError_IsByCode(t *testing.T) {
	a := New(CodeNotInitialized, "store closed")
	b := New(CodeNotInitialized, "different message")

	if !errors.Is(a, b) {
		t.Error("expected errors with the same code to match")
	}

	c := New(CodeConfigInvalid, "bad config")
	if errors.Is(a, c) {
		t.Error("expected errors with different codes not to match")
	}
}

func TestAsCode(t *testing.T) {
	err := New(CodeEmbeddingFailed, "model error")
	if got := AsCode(err); got != CodeEmbeddingFailed {
		t.Errorf("expected %q, got %q", CodeEmbeddingFailed, got)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if got := AsCode(wrapped); got != CodeEmbeddingFailed {
		t.Errorf("expected code through wrapping, got %q", got)
	}

	if got := AsCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("expected empty code for plain error, got %q", got)
	}
}

func TestSuggestion(t *testing.T) {
	err := New(CodeAPIKeyMissing, "OPENAI_API_KEY not set").
		WithSuggestion("Set the OPENAI_API_KEY environment variable")

	if got := Suggestion(err); got == "" {
		t.Error("expected a suggestion")
	}
	if got := Suggestion(fmt.Errorf("plain")); got != "" {
		t.Errorf("expected empty suggestion, got %q", got)
	}
}
