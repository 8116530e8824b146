package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rate limited", fmt.Errorf("alphavantage: %w", ErrRateLimited), KindSourceRateLimited},
		{"parse", fmt.Errorf("decode: %w", ErrParse), KindParseError},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), KindSourceUnavailable},
		{"classifier", ErrClassifierUnavailable, KindClassifierUnavailable},
		{"unknown", errors.New("boom"), KindSourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestEmptySnapshot_HasAllCategories(t *testing.T) {
	s := EmptySnapshot(Categories)
	if s.Ready() {
		t.Fatal("empty snapshot should not be ready")
	}
	for _, c := range Categories {
		stories, ok := s.StoriesByCategory[c]
		if !ok {
			t.Fatalf("missing category key %s", c)
		}
		if stories == nil || len(stories) != 0 {
			t.Fatalf("expected empty non-nil slice for %s, got %v", c, stories)
		}
	}
}

func TestSourceError_ErrorListsAttempts(t *testing.T) {
	e := &SourceError{
		Domain: DomainQuote,
		Source: "AAPL",
		Kind:   KindSourceUnavailable,
		Attempts: []Attempt{
			{Provider: "alphavantage", Kind: KindSourceRateLimited},
			{Provider: "finnhub", Kind: KindSourceUnavailable},
		},
	}
	msg := e.Error()
	if !strings.Contains(msg, "alphavantage=source_rate_limited") || !strings.Contains(msg, "finnhub=source_unavailable") {
		t.Fatalf("unexpected error text: %s", msg)
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("video_games"); !ok || c != Gaming {
		t.Fatalf("expected gaming, got %q %v", c, ok)
	}
	if _, ok := ParseCategory("sports"); ok {
		t.Fatal("expected sports to be rejected")
	}
}
