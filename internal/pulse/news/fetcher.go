// Package news fetches, normalizes and annotates feed stories for one
// category at a time.
package news

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/sentiment"
)

// SourceLister supplies the feeds of a category in priority order.
type SourceLister interface {
	Sources(c model.Category) []model.FeedSource
}

// Config tunes the fetcher.
type Config struct {
	SourceTimeout       time.Duration `yaml:"source_timeout" json:"source_timeout" env:"NEWS_SOURCE_TIMEOUT"`
	MaxPerSource        int           `yaml:"max_per_source" json:"max_per_source" env:"NEWS_MAX_PER_SOURCE"`
	SourceConcurrency   int           `yaml:"source_concurrency" json:"source_concurrency"`
	ClassifyConcurrency int           `yaml:"classify_concurrency" json:"classify_concurrency"`
	SummaryMaxLen       int           `yaml:"summary_max_len" json:"summary_max_len"`
	UserAgent           string        `yaml:"user_agent" json:"user_agent"`
	// ClassifyBudget caps the time spent labelling one category. It shrinks
	// to fit inside the caller's deadline; stories not labelled in time keep
	// the unknown label.
	ClassifyBudget time.Duration `yaml:"classify_budget" json:"classify_budget" env:"NEWS_CLASSIFY_BUDGET"`
	// Retries are extra attempts on transport errors, 429 and 5xx, all
	// within SourceTimeout.
	Retries   int           `yaml:"retries" json:"retries"`
	RetryWait time.Duration `yaml:"retry_wait" json:"retry_wait"`
}

// DefaultConfig returns the fetcher defaults.
func DefaultConfig() Config {
	return Config{
		SourceTimeout:       8 * time.Second,
		MaxPerSource:        10,
		SourceConcurrency:   4,
		ClassifyConcurrency: 4,
		SummaryMaxLen:       300,
		UserAgent:           "StreamPulse/1.0 (+feed reader)",
		ClassifyBudget:      15 * time.Second,
		Retries:             1,
		RetryWait:           500 * time.Millisecond,
	}
}

// Fetcher pulls every source of a category and merges their stories.
type Fetcher struct {
	sources    SourceLister
	classifier sentiment.Classifier
	client     *resty.Client
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewFetcher creates a Fetcher. A nil classifier is replaced by sentiment.Nop.
func NewFetcher(sources SourceLister, classifier sentiment.Classifier, cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = def.SourceTimeout
	}
	if cfg.MaxPerSource <= 0 {
		cfg.MaxPerSource = def.MaxPerSource
	}
	if cfg.SourceConcurrency <= 0 {
		cfg.SourceConcurrency = def.SourceConcurrency
	}
	if cfg.ClassifyConcurrency <= 0 {
		cfg.ClassifyConcurrency = def.ClassifyConcurrency
	}
	if cfg.SummaryMaxLen <= 0 {
		cfg.SummaryMaxLen = def.SummaryMaxLen
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.ClassifyBudget <= 0 {
		cfg.ClassifyBudget = def.ClassifyBudget
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if classifier == nil {
		classifier = sentiment.Nop{}
	}
	return &Fetcher{
		sources:    sources,
		classifier: classifier,
		client:     newFeedClient(cfg),
		cfg:        cfg,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// SetLogger overrides the default logger.
func (f *Fetcher) SetLogger(l *slog.Logger) { f.logger = l }

// SourceCount returns how many feeds back category c.
func (f *Fetcher) SourceCount(c model.Category) int {
	return len(f.sources.Sources(c))
}

type sourceResult struct {
	stories []model.Story
	err     error
}

// FetchCategory fetches all sources of c. A failing source contributes one
// SourceError and never aborts the others. Stories are deduplicated by
// normalized title; the highest-priority source wins.
func (f *Fetcher) FetchCategory(ctx context.Context, c model.Category) ([]model.Story, []model.SourceError) {
	sources := f.sources.Sources(c)
	if len(sources) == 0 {
		return []model.Story{}, nil
	}

	// Indexed by priority so the merge below is deterministic.
	results := make([]sourceResult, len(sources))
	done := make(chan struct{}, len(sources))
	sem := make(chan struct{}, f.cfg.SourceConcurrency)

	for i, src := range sources {
		go func(i int, src model.FeedSource) {
			defer func() { done <- struct{}{} }()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = sourceResult{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			results[i] = f.fetchSource(ctx, src)
		}(i, src)
	}
	for range sources {
		<-done
	}

	var (
		stories []model.Story
		errs    []model.SourceError
		seen    = make(map[string]bool)
	)
	for i, res := range results {
		src := sources[i]
		if res.err != nil {
			errs = append(errs, model.NewSourceError(model.DomainNews, src.Name, res.err))
			f.logger.Warn("feed source failed",
				"category", c, "source", src.Name, "error", res.err)
			continue
		}
		for _, s := range res.stories {
			key := NormalizeTitle(s.Title)
			if seen[key] {
				continue
			}
			seen[key] = true
			stories = append(stories, s)
		}
	}
	if stories == nil {
		stories = []model.Story{}
	}

	f.annotate(ctx, c, stories)

	f.logger.Debug("category fetched",
		"category", c, "stories", len(stories), "failed_sources", len(errs))
	return stories, errs
}

func (f *Fetcher) fetchSource(ctx context.Context, src model.FeedSource) sourceResult {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.SourceTimeout)
	defer cancel()

	fetchedAt := f.now()
	feed, err := f.fetchFeed(ctx, src)
	if err != nil {
		return sourceResult{err: err}
	}
	return sourceResult{stories: f.storiesFrom(src, feed, fetchedAt)}
}

// annotate labels stories in place with bounded concurrency. It returns when
// every story is labelled or the classify budget runs out, whichever comes
// first; calls still in flight then are abandoned.
func (f *Fetcher) annotate(ctx context.Context, c model.Category, stories []model.Story) {
	if len(stories) == 0 {
		return
	}
	ctx, cancel := f.classifyContext(ctx)
	defer cancel()

	type label struct {
		index int
		value model.Sentiment
	}
	texts := make([]string, len(stories))
	for i, s := range stories {
		texts[i] = s.Title
		if s.Summary != "" {
			texts[i] = strings.Join([]string{s.Title, s.Summary}, ". ")
		}
	}

	// Buffered so abandoned calls never block.
	results := make(chan label, len(stories))
	go func() {
		sem := make(chan struct{}, f.cfg.ClassifyConcurrency)
		for i, text := range texts {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func() {
				defer func() { <-sem }()
				results <- label{index: i, value: f.classifier.Classify(ctx, text)}
			}()
		}
	}()

	for n := 0; n < len(stories); n++ {
		select {
		case l := <-results:
			stories[l.index].Sentiment = l.value
		case <-ctx.Done():
			f.logger.Warn("classify budget exhausted, remaining stories stay unknown",
				"category", c, "labelled", n, "stories", len(stories))
			return
		}
	}
}

// classifyContext bounds labelling by ClassifyBudget and by three quarters
// of whatever time the caller has left, so the stories get back in time.
func (f *Fetcher) classifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := f.cfg.ClassifyBudget
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl) * 3 / 4; left < budget {
			budget = left
		}
	}
	return context.WithTimeout(ctx, budget)
}

func newFeedClient(cfg Config) *resty.Client {
	c := resty.New()
	c.SetHeader("User-Agent", cfg.UserAgent)
	c.SetHeader("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")
	c.SetRetryCount(cfg.Retries)
	c.SetRetryWaitTime(cfg.RetryWait)
	c.SetRetryMaxWaitTime(cfg.RetryWait)
	c.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})
	return c
}
