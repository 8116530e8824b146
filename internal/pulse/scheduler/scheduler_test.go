package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/news"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/snapshot"
)

type mockNews struct {
	fetchFn func(ctx context.Context, c model.Category) ([]model.Story, []model.SourceError)
	sources int
}

func (m *mockNews) FetchCategory(ctx context.Context, c model.Category) ([]model.Story, []model.SourceError) {
	return m.fetchFn(ctx, c)
}

func (m *mockNews) SourceCount(model.Category) int { return m.sources }

type mockQuotes struct {
	fetchFn func(ctx context.Context, symbol string) (model.Quote, error)
}

func (m *mockQuotes) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	return m.fetchFn(ctx, symbol)
}

type mockStats struct {
	keys    []string
	fetchFn func(ctx context.Context, key string) (model.GlobalStat, error)
}

func (m *mockStats) Keys() []string { return m.keys }
func (m *mockStats) FetchStat(ctx context.Context, key string) (model.GlobalStat, error) {
	return m.fetchFn(ctx, key)
}

func stories(c model.Category, source string, n int) []model.Story {
	out := make([]model.Story, n)
	for i := range out {
		out[i] = model.Story{ID: fmt.Sprintf("%s-%d", source, i), Category: c, Title: fmt.Sprintf("%s %d", source, i), Source: source}
	}
	return out
}

func quoteErr(symbol string) error {
	return &model.SourceError{
		Domain: model.DomainQuote,
		Source: symbol,
		Kind:   model.KindSourceUnavailable,
		Attempts: []model.Attempt{
			{Provider: "alphavantage", Kind: model.KindSourceRateLimited},
			{Provider: "finnhub", Kind: model.KindSourceUnavailable},
		},
	}
}

func newTestScheduler(t *testing.T, deadline time.Duration, deps Deps) *Scheduler {
	t.Helper()
	if deps.Categories == nil {
		deps.Categories = model.Categories
	}
	s := New(Config{CycleDeadline: deadline, Workers: 4}, deps)
	t.Cleanup(s.Close)
	return s
}

func TestRunShortCycle_FinancialScenario(t *testing.T) {
	news := &mockNews{sources: 2, fetchFn: func(_ context.Context, c model.Category) ([]model.Story, []model.SourceError) {
		if c == model.Financial {
			return stories(c, "B", 3), []model.SourceError{{Domain: model.DomainNews, Source: "A", Kind: model.KindSourceUnavailable}}
		}
		return stories(c, "X", 1), nil
	}}
	s := newTestScheduler(t, time.Second, Deps{News: news})

	report := s.RunShortCycle(context.Background())
	if !report.Replaced {
		t.Fatalf("expected snapshot to be replaced: %+v", report)
	}

	snap := s.Store().Current()
	if got := len(snap.Stories(model.Financial)); got != 3 {
		t.Fatalf("expected 3 financial stories, got %d", got)
	}
	errs := snap.ErrorsFor(model.DomainNews)
	if len(errs) != 1 || errs[0].Source != "A" {
		t.Fatalf("expected one error for A, got %+v", errs)
	}
	if len(snap.StoriesByCategory) != len(model.Categories) {
		t.Fatalf("expected every category as a key, got %d", len(snap.StoriesByCategory))
	}
	if !snap.Ready() || snap.Sequence != 1 {
		t.Fatalf("expected first published snapshot, got ready=%v seq=%d", snap.Ready(), snap.Sequence)
	}
}

func TestRunShortCycle_FailedCategoryIsEmptyNotMissing(t *testing.T) {
	news := &mockNews{sources: 2, fetchFn: func(_ context.Context, c model.Category) ([]model.Story, []model.SourceError) {
		if c == model.Gaming {
			return []model.Story{}, []model.SourceError{
				{Domain: model.DomainNews, Source: "G1", Kind: model.KindSourceUnavailable},
				{Domain: model.DomainNews, Source: "G2", Kind: model.KindParseError},
			}
		}
		return stories(c, "ok", 2), nil
	}}
	s := newTestScheduler(t, time.Second, Deps{News: news})
	s.RunShortCycle(context.Background())

	snap := s.Store().Current()
	for _, c := range model.Categories {
		got, ok := snap.StoriesByCategory[c]
		if !ok || got == nil {
			t.Fatalf("category %s missing", c)
		}
	}
	if len(snap.Stories(model.Gaming)) != 0 {
		t.Fatal("expected no gaming stories")
	}
	if len(snap.ErrorsFor(model.DomainNews)) != 2 {
		t.Fatalf("expected one error per failed gaming source, got %+v", snap.SourceErrors)
	}
}

func TestRunShortCycle_NewsIsNotCarriedForward(t *testing.T) {
	var fail atomic.Bool
	news := &mockNews{sources: 1, fetchFn: func(_ context.Context, c model.Category) ([]model.Story, []model.SourceError) {
		if fail.Load() && c == model.General {
			return []model.Story{}, []model.SourceError{{Domain: model.DomainNews, Source: "A"}}
		}
		return stories(c, "A", 2), nil
	}}
	s := newTestScheduler(t, time.Second, Deps{News: news})
	s.RunShortCycle(context.Background())
	fail.Store(true)
	s.RunShortCycle(context.Background())

	if n := len(s.Store().Current().Stories(model.General)); n != 0 {
		t.Fatalf("expected stale stories to be dropped, got %d", n)
	}
}

func TestRunShortCycle_QuoteCarryForward(t *testing.T) {
	var fail atomic.Bool
	quotes := &mockQuotes{fetchFn: func(_ context.Context, sym string) (model.Quote, error) {
		if fail.Load() && sym == "AAPL" {
			return model.Quote{}, quoteErr(sym)
		}
		return model.Quote{Symbol: sym, Price: decimal.NewFromInt(100), Provider: model.Primary}, nil
	}}
	s := newTestScheduler(t, time.Second, Deps{Categories: []model.Category{}, Symbols: []string{"AAPL", "MSFT"}, Quotes: quotes})

	s.RunShortCycle(context.Background())
	before := s.Store().Current().Quotes["AAPL"]

	fail.Store(true)
	report := s.RunShortCycle(context.Background())
	if !report.Replaced {
		t.Fatal("MSFT succeeded, so the snapshot should be replaced")
	}

	snap := s.Store().Current()
	if got := snap.Quotes["AAPL"]; !got.Price.Equal(before.Price) || got.Provider != before.Provider {
		t.Fatalf("expected AAPL carried forward, got %+v", got)
	}
	errs := snap.ErrorsFor(model.DomainQuote)
	if len(errs) != 1 || errs[0].Source != "AAPL" || len(errs[0].Attempts) != 2 {
		t.Fatalf("expected AAPL error with both attempts, got %+v", errs)
	}
}

func TestRunShortCycle_FallbackAttribution(t *testing.T) {
	quotes := &mockQuotes{fetchFn: func(_ context.Context, sym string) (model.Quote, error) {
		return model.Quote{Symbol: sym, Price: decimal.RequireFromString("150.00"), Provider: model.Fallback, ProviderName: "finnhub"}, nil
	}}
	s := newTestScheduler(t, time.Second, Deps{Symbols: []string{"AAPL"}, Quotes: quotes})
	s.RunShortCycle(context.Background())

	q := s.Store().Current().Quotes["AAPL"]
	if !q.Price.Equal(decimal.RequireFromString("150")) || q.Provider != model.Fallback {
		t.Fatalf("expected fallback 150.00, got %+v", q)
	}
}

func TestRunShortCycle_AllTasksTimeOut(t *testing.T) {
	// Closed before the cleanup that stops the pool.
	release := make(chan struct{})
	defer close(release)
	news := &mockNews{sources: 1, fetchFn: func(context.Context, model.Category) ([]model.Story, []model.SourceError) {
		<-release
		return stories(model.General, "late", 1), nil
	}}
	quotes := &mockQuotes{fetchFn: func(context.Context, string) (model.Quote, error) {
		<-release
		return model.Quote{Price: decimal.NewFromInt(1)}, nil
	}}
	store := snapshot.New(model.EmptySnapshot(model.Categories))
	before := store.Current()
	s := newTestScheduler(t, 50*time.Millisecond, Deps{Symbols: []string{"AAPL"}, News: news, Quotes: quotes, Store: store})

	start := time.Now()
	report := s.RunShortCycle(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("cycle waited past its deadline")
	}
	if report.Replaced || report.Successes != 0 || report.Completed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.TimedOut != report.Tasks {
		t.Fatalf("expected all %d tasks timed out, got %d", report.Tasks, report.TimedOut)
	}
	if store.Current() != before {
		t.Fatal("store must be unchanged when every task timed out")
	}
}

func TestRunShortCycle_AllTasksFail(t *testing.T) {
	news := &mockNews{sources: 1, fetchFn: func(context.Context, model.Category) ([]model.Story, []model.SourceError) {
		return []model.Story{}, []model.SourceError{{Domain: model.DomainNews, Source: "x"}}
	}}
	quotes := &mockQuotes{fetchFn: func(_ context.Context, sym string) (model.Quote, error) { return model.Quote{}, quoteErr(sym) }}
	s := newTestScheduler(t, time.Second, Deps{Symbols: []string{"AAPL"}, News: news, Quotes: quotes})
	before := s.Store().Current()

	if r := s.RunShortCycle(context.Background()); r.Replaced {
		t.Fatalf("expected no publish, got %+v", r)
	}
	if s.Store().Current() != before {
		t.Fatal("store changed after a cycle with zero successes")
	}
}

func TestRunShortCycle_LateResultsAreDiscarded(t *testing.T) {
	news := &mockNews{sources: 1, fetchFn: func(ctx context.Context, c model.Category) ([]model.Story, []model.SourceError) {
		if c == model.SciTech {
			<-ctx.Done()
			return stories(c, "late", 5), nil
		}
		return stories(c, "fast", 1), nil
	}}
	s := newTestScheduler(t, 100*time.Millisecond, Deps{News: news})
	report := s.RunShortCycle(context.Background())

	if report.TimedOut != 1 || !report.Replaced {
		t.Fatalf("expected one timed-out task and a publish, got %+v", report)
	}
	snap := s.Store().Current()
	if len(snap.Stories(model.SciTech)) != 0 {
		t.Fatal("late result must not be merged")
	}
	errs := snap.ErrorsFor(model.DomainNews)
	if len(errs) != 1 || errs[0].Source != string(model.SciTech) || !strings.Contains(errs[0].Message, "cycle deadline") {
		t.Fatalf("expected deadline error for scitech, got %+v", errs)
	}
}

func TestRunShortCycle_PanicIsFailedTask(t *testing.T) {
	news := &mockNews{sources: 1, fetchFn: func(_ context.Context, c model.Category) ([]model.Story, []model.SourceError) {
		if c == model.Gaming {
			panic("feed parser exploded")
		}
		return stories(c, "ok", 1), nil
	}}
	s := newTestScheduler(t, time.Second, Deps{News: news})

	report := s.RunShortCycle(context.Background())
	if report.Completed != report.Tasks || report.Successes != report.Tasks-1 {
		t.Fatalf("expected panic reported as a completed failure: %+v", report)
	}
	errs := s.Store().Current().ErrorsFor(model.DomainNews)
	if len(errs) != 1 || errs[0].Source != string(model.Gaming) || !strings.Contains(errs[0].Message, "panicked") {
		t.Fatalf("expected panic error for gaming, got %+v", errs)
	}

	if n := s.pool.Panics(); n != 1 {
		t.Fatalf("expected the pool to count 1 panic, got %d", n)
	}

	// The pool survives for the next cycle.
	if r := s.RunShortCycle(context.Background()); !r.Replaced {
		t.Fatal("expected the next cycle to publish")
	}
}

func TestRunLongCycle_CarryForwardAndErrorScope(t *testing.T) {
	var fail atomic.Bool
	stats := &mockStats{keys: []string{"us_debt", "global_co2"}, fetchFn: func(_ context.Context, key string) (model.GlobalStat, error) {
		if fail.Load() && key == "global_co2" {
			return model.GlobalStat{}, &model.SourceError{Domain: model.DomainStat, Source: key, Kind: model.KindParseError}
		}
		return model.GlobalStat{Key: key, Value: 1}, nil
	}}
	news := &mockNews{sources: 2, fetchFn: func(_ context.Context, c model.Category) ([]model.Story, []model.SourceError) {
		return stories(c, "n", 1), []model.SourceError{{Domain: model.DomainNews, Source: "flaky"}}
	}}
	s := newTestScheduler(t, time.Second, Deps{News: news, Stats: stats})

	s.RunShortCycle(context.Background())
	s.RunLongCycle(context.Background())
	fail.Store(true)
	report := s.RunLongCycle(context.Background())
	if !report.Replaced {
		t.Fatalf("expected publish, got %+v", report)
	}

	snap := s.Store().Current()
	if _, ok := snap.Stats["global_co2"]; !ok {
		t.Fatal("expected global_co2 carried forward")
	}
	if len(snap.ErrorsFor(model.DomainStat)) != 1 {
		t.Fatalf("expected one stat error, got %+v", snap.ErrorsFor(model.DomainStat))
	}
	if len(snap.ErrorsFor(model.DomainNews)) != len(model.Categories) {
		t.Fatalf("news errors must survive a stats cycle, got %+v", snap.ErrorsFor(model.DomainNews))
	}
	if len(snap.Stories(model.General)) != 1 {
		t.Fatal("stories must survive a stats cycle")
	}

	// A following short cycle keeps the stat error.
	s.RunShortCycle(context.Background())
	if len(s.Store().Current().ErrorsFor(model.DomainStat)) != 1 {
		t.Fatal("short cycle dropped the stat error")
	}
}

func TestRunShortCycle_CancelledContextDoesNotPublish(t *testing.T) {
	news := &mockNews{sources: 1, fetchFn: func(context.Context, model.Category) ([]model.Story, []model.SourceError) {
		return stories(model.General, "a", 1), nil
	}}
	s := newTestScheduler(t, time.Second, Deps{News: news})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if r := s.RunShortCycle(ctx); r.Replaced {
		t.Fatal("expected no publish after shutdown")
	}
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	var calls atomic.Int32
	news := &mockNews{sources: 1, fetchFn: func(_ context.Context, c model.Category) ([]model.Story, []model.SourceError) {
		calls.Add(1)
		return stories(c, "a", 1), nil
	}}
	s := New(Config{ShortInterval: time.Hour, LongInterval: time.Hour, CycleDeadline: time.Second, Workers: 2},
		Deps{Categories: []model.Category{model.General}, News: news})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !s.Store().Current().Ready() {
		select {
		case <-deadline:
			t.Fatal("first cycle did not run immediately")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one cycle, got %d", calls.Load())
	}
}

func TestPool(t *testing.T) {
	p := NewPool(1)

	ran := make(chan struct{})
	if err := p.Submit(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatal(err)
	}
	if err := p.Submit(context.Background(), func() { close(ran) }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panic")
	}
	if p.Panics() != 1 {
		t.Fatalf("expected 1 panic, got %d", p.Panics())
	}

	block := make(chan struct{})
	if err := p.Submit(context.Background(), func() { <-block }); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Submit(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected submit to give up with the context, got %v", err)
	}
	close(block)

	p.Close()
	if err := p.Submit(context.Background(), func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

type classifierFunc func(ctx context.Context, text string) model.Sentiment

func (f classifierFunc) Classify(ctx context.Context, text string) model.Sentiment { return f(ctx, text) }

func rssFeed(prefix string, n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>%s story %d</title><link>https://example.com/%s/%d</link></item>`, prefix, i, prefix, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestRunShortCycle_SlowClassifierKeepsStories(t *testing.T) {
	mux := http.NewServeMux()
	for _, name := range []string{"a", "b"} {
		body := rssFeed(name, 10)
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources := staticSources{model.Financial: {
		{Category: model.Financial, Name: "A", URL: srv.URL + "/a", Order: 0},
		{Category: model.Financial, Name: "B", URL: srv.URL + "/b", Order: 1},
	}}
	// Every call is far inside a per-call timeout, but 20 of them at 4 at a
	// time would overrun the cycle.
	slow := classifierFunc(func(context.Context, string) model.Sentiment {
		time.Sleep(300 * time.Millisecond)
		return model.Neutral
	})
	cfg := news.DefaultConfig()
	cfg.SourceTimeout = 500 * time.Millisecond
	fetcher := news.NewFetcher(sources, slow, cfg)

	s := newTestScheduler(t, time.Second, Deps{
		Categories: []model.Category{model.Financial},
		News:       fetcher,
	})
	report := s.RunShortCycle(context.Background())
	if report.TimedOut != 0 || !report.Replaced {
		t.Fatalf("expected the news task to finish inside the cycle: %+v", report)
	}
	got := s.Store().Current().Stories(model.Financial)
	if len(got) != 20 {
		t.Fatalf("expected 20 financial stories, got %d", len(got))
	}
	var unknown int
	for _, st := range got {
		if st.Sentiment == model.SentimentUnknown {
			unknown++
		}
	}
	if unknown == 0 {
		t.Fatal("expected stories past the classify budget to stay unknown")
	}
}

type staticSources map[model.Category][]model.FeedSource

func (s staticSources) Sources(c model.Category) []model.FeedSource { return s[c] }
