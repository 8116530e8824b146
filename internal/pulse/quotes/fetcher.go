// Package quotes fetches stock quotes through an ordered chain of providers.
// The first provider in the chain is the primary; every later one is a
// fallback tried only when the providers before it failed.
package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// Provider is one quote endpoint. Quote must wrap model.ErrRateLimited,
// model.ErrParse or model.ErrSourceUnavailable so failures can be told apart.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (model.Quote, error)
}

// Fetcher walks the provider chain for each symbol.
type Fetcher struct {
	providers      []Provider
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewFetcher creates a Fetcher over providers in priority order.
func NewFetcher(attemptTimeout time.Duration, providers ...Provider) *Fetcher {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultConfig().AttemptTimeout
	}
	return &Fetcher{
		providers:      providers,
		attemptTimeout: attemptTimeout,
		logger:         slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (f *Fetcher) SetLogger(l *slog.Logger) { f.logger = l }

// Providers returns the names of the chain in order.
func (f *Fetcher) Providers() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return names
}

// FetchQuote returns the first successful quote in chain order. When every
// provider fails the error is a *model.SourceError listing each attempt.
func (f *Fetcher) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	serr := &model.SourceError{
		Domain: model.DomainQuote,
		Source: symbol,
		Kind:   model.KindSourceUnavailable,
	}
	if len(f.providers) == 0 {
		serr.Message = "no quote providers configured"
		return model.Quote{}, serr
	}

	var last error
	for i, p := range f.providers {
		q, err := f.attempt(ctx, p, symbol)
		if err == nil {
			q.Symbol = symbol
			q.ProviderName = p.Name()
			q.Provider = model.Primary
			if i > 0 {
				q.Provider = model.Fallback
			}
			return q, nil
		}

		last = err
		serr.Attempts = append(serr.Attempts, model.Attempt{
			Provider: p.Name(),
			Kind:     model.KindOf(err),
			Message:  err.Error(),
		})
		f.logger.Debug("quote provider failed",
			"symbol", symbol, "provider", p.Name(), "kind", model.KindOf(err), "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	serr.Kind = model.KindOf(last)
	serr.Message = last.Error()
	return model.Quote{}, serr
}

type attemptResult struct {
	quote model.Quote
	err   error
}

// attempt runs one provider call under its own timeout. A provider that
// ignores cancellation is abandoned once the timeout passes.
func (f *Fetcher) attempt(ctx context.Context, p Provider, symbol string) (model.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	ch := make(chan attemptResult, 1)
	go func() {
		q, err := p.Quote(ctx, symbol)
		ch <- attemptResult{quote: q, err: err}
	}()

	select {
	case r := <-ch:
		return r.quote, r.err
	case <-ctx.Done():
		return model.Quote{}, fmt.Errorf("%s: %w: %w", p.Name(), model.ErrSourceUnavailable, ctx.Err())
	}
}
