package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors wrapped by fetchers so KindOf can classify them.
var (
	ErrSourceUnavailable     = errors.New("source unavailable")
	ErrRateLimited           = errors.New("source rate limited")
	ErrParse                 = errors.New("parse error")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// ErrorKind names a failure class recorded on a Snapshot.
type ErrorKind string

const (
	KindSourceUnavailable     ErrorKind = "source_unavailable"
	KindSourceRateLimited     ErrorKind = "source_rate_limited"
	KindParseError            ErrorKind = "parse_error"
	KindClassifierUnavailable ErrorKind = "classifier_unavailable"
)

// Domain says which part of the pipeline produced a SourceError.
type Domain string

const (
	DomainNews  Domain = "news"
	DomainQuote Domain = "quote"
	DomainStat  Domain = "stat"
)

// KindOf maps an error chain to an ErrorKind. Timeouts and anything
// unrecognised count as the source being unavailable.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrRateLimited):
		return KindSourceRateLimited
	case errors.Is(err, ErrParse):
		return KindParseError
	case errors.Is(err, ErrClassifierUnavailable):
		return KindClassifierUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	default:
		return KindSourceUnavailable
	}
}

// Attempt is one provider try inside a provider chain.
type Attempt struct {
	Provider string    `json:"provider"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// SourceError is a per-source failure attached to a Snapshot. It also
// satisfies error so fetchers can return it directly.
type SourceError struct {
	Domain   Domain    `json:"domain"`
	Source   string    `json:"source"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// NewSourceError builds a SourceError from err, classifying it with KindOf.
func NewSourceError(domain Domain, source string, err error) SourceError {
	return SourceError{
		Domain:  domain,
		Source:  source,
		Kind:    KindOf(err),
		Message: err.Error(),
	}
}

func (e *SourceError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s %s: %s: %s", e.Domain, e.Source, e.Kind, e.Message)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Provider, a.Kind))
	}
	return fmt.Sprintf("%s %s: %s (%s)", e.Domain, e.Source, e.Kind, strings.Join(parts, ", "))
}
