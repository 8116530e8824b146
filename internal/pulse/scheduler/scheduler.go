// Package scheduler drives the periodic aggregation cycles. A short loop
// refreshes news and quotes, a long loop refreshes global stats. Each cycle
// fans tasks out to a shared worker pool, collects what finishes before the
// cycle deadline, and publishes a merged snapshot.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/snapshot"
)

// NewsSource fetches one category per call.
type NewsSource interface {
	FetchCategory(ctx context.Context, c model.Category) ([]model.Story, []model.SourceError)
	SourceCount(c model.Category) int
}

// QuoteSource fetches one symbol per call.
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
}

// StatSource fetches one stat per call.
type StatSource interface {
	Keys() []string
	FetchStat(ctx context.Context, key string) (model.GlobalStat, error)
}

// Config holds the loop timings.
type Config struct {
	ShortInterval time.Duration `yaml:"short_interval" json:"short_interval" env:"PULSE_SHORT_INTERVAL"`
	LongInterval  time.Duration `yaml:"long_interval" json:"long_interval" env:"PULSE_LONG_INTERVAL"`
	CycleDeadline time.Duration `yaml:"cycle_deadline" json:"cycle_deadline" env:"PULSE_CYCLE_DEADLINE"`
	Workers       int           `yaml:"workers" json:"workers" env:"PULSE_WORKERS"`
}

// DefaultConfig returns the default loop timings.
func DefaultConfig() Config {
	return Config{
		ShortInterval: 60 * time.Second,
		LongInterval:  time.Hour,
		CycleDeadline: 30 * time.Second,
		Workers:       8,
	}
}

// Deps wires the scheduler to its sources and output.
type Deps struct {
	Categories []model.Category
	Symbols    []string
	News       NewsSource
	Quotes     QuoteSource
	Stats      StatSource
	Store      *snapshot.Store
	// Pool is optional; when nil the scheduler owns a pool of cfg.Workers.
	Pool *Pool
}

// Scheduler runs aggregation cycles.
type Scheduler struct {
	cfg        Config
	categories []model.Category
	symbols    []string
	news       NewsSource
	quotes     QuoteSource
	stats      StatSource
	store      *snapshot.Store
	pool       *Pool
	ownsPool   bool
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Scheduler. Zero values in cfg fall back to DefaultConfig.
func New(cfg Config, deps Deps) *Scheduler {
	def := DefaultConfig()
	if cfg.ShortInterval <= 0 {
		cfg.ShortInterval = def.ShortInterval
	}
	if cfg.LongInterval <= 0 {
		cfg.LongInterval = def.LongInterval
	}
	if cfg.CycleDeadline <= 0 {
		cfg.CycleDeadline = def.CycleDeadline
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	s := &Scheduler{
		cfg:        cfg,
		categories: deps.Categories,
		symbols:    deps.Symbols,
		news:       deps.News,
		quotes:     deps.Quotes,
		stats:      deps.Stats,
		store:      deps.Store,
		pool:       deps.Pool,
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.store == nil {
		s.store = snapshot.New(model.EmptySnapshot(s.categories))
	}
	if s.pool == nil {
		s.pool = NewPool(cfg.Workers)
		s.ownsPool = true
	}
	return s
}

// SetLogger overrides the default logger.
func (s *Scheduler) SetLogger(l *slog.Logger) { s.logger = l }

// Store returns the snapshot store the scheduler publishes to.
func (s *Scheduler) Store() *snapshot.Store { return s.store }

// Close releases the worker pool if the scheduler created it.
func (s *Scheduler) Close() {
	if s.ownsPool {
		s.pool.Close()
	}
}

// Start runs both loops until ctx is cancelled. Each loop runs a cycle
// immediately, then on its interval; a cycle never overlaps the previous one
// of the same loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		"short_interval", s.cfg.ShortInterval,
		"long_interval", s.cfg.LongInterval,
		"cycle_deadline", s.cfg.CycleDeadline,
		"workers", s.pool.Size())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.ShortInterval, s.RunShortCycle)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.LongInterval, s.RunLongCycle)
	}()
	wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, cycle func(context.Context) CycleReport) {
	// Run once immediately
	cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle(ctx)
		}
	}
}

// CycleKind names a loop.
type CycleKind string

const (
	ShortCycle CycleKind = "short"
	LongCycle  CycleKind = "long"
)

// CycleReport summarizes one cycle.
type CycleReport struct {
	Kind      CycleKind           `json:"kind"`
	Started   time.Time           `json:"started"`
	Duration  time.Duration       `json:"duration"`
	Tasks     int                 `json:"tasks"`
	Completed int                 `json:"completed"`
	TimedOut  int                 `json:"timed_out"`
	Successes int                 `json:"successes"`
	Replaced  bool                `json:"replaced"`
	Errors    []model.SourceError `json:"errors,omitempty"`
}

type taskKind int

const (
	newsTask taskKind = iota
	quoteTask
	statTask
)

type task struct {
	kind taskKind
	key  string
	run  func(ctx context.Context) outcome
}

type outcome struct {
	index   int
	ok      bool
	stories []model.Story
	quote   model.Quote
	stat    model.GlobalStat
	errs    []model.SourceError
}

var errTaskPanicked = errors.New("task panicked")

func (k taskKind) domain() model.Domain {
	switch k {
	case quoteTask:
		return model.DomainQuote
	case statTask:
		return model.DomainStat
	default:
		return model.DomainNews
	}
}

// RunShortCycle fetches every category and symbol once and publishes the
// merged snapshot unless nothing succeeded.
func (s *Scheduler) RunShortCycle(ctx context.Context) CycleReport {
	tasks := make([]task, 0, len(s.categories)+len(s.symbols))
	if s.news != nil {
		for _, c := range s.categories {
			tasks = append(tasks, task{kind: newsTask, key: string(c), run: s.newsTask(c)})
		}
	}
	if s.quotes != nil {
		for _, sym := range s.symbols {
			tasks = append(tasks, task{kind: quoteTask, key: sym, run: s.quoteTask(sym)})
		}
	}

	report := CycleReport{Kind: ShortCycle, Started: s.now(), Tasks: len(tasks)}
	outcomes := s.runCycle(ctx, tasks)

	r := shortResult{
		stories: make(map[model.Category][]model.Story),
		quotes:  make(map[string]model.Quote),
	}
	for i, t := range tasks {
		o := outcomes[i]
		switch {
		case o == nil:
			r.errs = append(r.errs, timeoutError(t))
			report.TimedOut++
			continue
		case t.kind == newsTask && o.ok:
			r.stories[model.Category(t.key)] = o.stories
		case t.kind == quoteTask && o.ok:
			r.quotes[t.key] = o.quote
		}
		report.Completed++
		if o.ok {
			r.successes++
		}
		r.errs = append(r.errs, o.errs...)
	}
	report.Successes = r.successes
	report.Errors = r.errs

	if ctx.Err() == nil {
		report.Replaced = s.store.Update(func(prev *model.Snapshot) (*model.Snapshot, bool) {
			return mergeShort(prev, s.categories, s.symbols, r, s.now())
		})
	}
	return s.finish(report)
}

// RunLongCycle fetches every stat once and publishes the merged snapshot
// unless nothing succeeded.
func (s *Scheduler) RunLongCycle(ctx context.Context) CycleReport {
	var keys []string
	if s.stats != nil {
		keys = s.stats.Keys()
	}
	tasks := make([]task, 0, len(keys))
	for _, k := range keys {
		tasks = append(tasks, task{kind: statTask, key: k, run: s.statTask(k)})
	}

	report := CycleReport{Kind: LongCycle, Started: s.now(), Tasks: len(tasks)}
	outcomes := s.runCycle(ctx, tasks)

	r := longResult{stats: make(map[string]model.GlobalStat)}
	for i, t := range tasks {
		o := outcomes[i]
		if o == nil {
			r.errs = append(r.errs, timeoutError(t))
			report.TimedOut++
			continue
		}
		report.Completed++
		if o.ok {
			r.stats[t.key] = o.stat
			r.successes++
		}
		r.errs = append(r.errs, o.errs...)
	}
	report.Successes = r.successes
	report.Errors = r.errs

	if ctx.Err() == nil {
		report.Replaced = s.store.Update(func(prev *model.Snapshot) (*model.Snapshot, bool) {
			return mergeLong(prev, keys, r, s.now())
		})
	}
	return s.finish(report)
}

// runCycle submits tasks to the pool and collects outcomes until all have
// arrived or the cycle deadline passes. Missing outcomes are nil. Outcomes
// that arrive later are dropped with the buffered channel.
func (s *Scheduler) runCycle(ctx context.Context, tasks []task) []*outcome {
	outcomes := make([]*outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleDeadline)
	defer cancel()

	results := make(chan outcome, len(tasks))
	go func() {
		for i, t := range tasks {
			err := s.pool.Submit(cctx, func() {
				o := outcome{errs: []model.SourceError{model.NewSourceError(t.kind.domain(), t.key, errTaskPanicked)}}
				defer func() {
					o.index = i
					results <- o
				}()
				o = t.run(cctx)
			})
			if err != nil {
				return
			}
		}
	}()

	for n := 0; n < len(tasks); n++ {
		select {
		case o := <-results:
			outcomes[o.index] = &o
		case <-cctx.Done():
			return outcomes
		}
	}
	return outcomes
}

func (s *Scheduler) newsTask(c model.Category) func(context.Context) outcome {
	return func(ctx context.Context) outcome {
		stories, errs := s.news.FetchCategory(ctx, c)
		return outcome{
			ok:      len(errs) < s.news.SourceCount(c),
			stories: stories,
			errs:    errs,
		}
	}
}

func (s *Scheduler) quoteTask(symbol string) func(context.Context) outcome {
	return func(ctx context.Context) outcome {
		q, err := s.quotes.FetchQuote(ctx, symbol)
		if err != nil {
			return outcome{errs: []model.SourceError{asSourceError(model.DomainQuote, symbol, err)}}
		}
		return outcome{ok: true, quote: q}
	}
}

func (s *Scheduler) statTask(key string) func(context.Context) outcome {
	return func(ctx context.Context) outcome {
		st, err := s.stats.FetchStat(ctx, key)
		if err != nil {
			return outcome{errs: []model.SourceError{asSourceError(model.DomainStat, key, err)}}
		}
		return outcome{ok: true, stat: st}
	}
}

func (s *Scheduler) finish(r CycleReport) CycleReport {
	r.Duration = s.now().Sub(r.Started)
	attrs := []any{
		"kind", r.Kind,
		"tasks", r.Tasks,
		"completed", r.Completed,
		"timed_out", r.TimedOut,
		"successes", r.Successes,
		"errors", len(r.Errors),
		"replaced", r.Replaced,
		"duration", r.Duration,
		"pool_panics", s.pool.Panics(),
	}
	if r.Tasks > 0 && r.Successes == 0 {
		s.logger.Warn("cycle produced nothing, keeping previous snapshot", attrs...)
	} else {
		s.logger.Info("cycle completed", attrs...)
	}
	return r
}

func asSourceError(d model.Domain, key string, err error) model.SourceError {
	var serr *model.SourceError
	if errors.As(err, &serr) {
		return *serr
	}
	return model.NewSourceError(d, key, err)
}

func timeoutError(t task) model.SourceError {
	return model.NewSourceError(t.kind.domain(), t.key,
		fmt.Errorf("%w: cycle deadline exceeded", context.DeadlineExceeded))
}
