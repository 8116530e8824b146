// Package stats fetches slow-changing world statistics. Each stat is fetched
// independently so one failing source never blanks the others.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// Source produces one statistic.
type Source interface {
	Key() string
	Fetch(ctx context.Context) (model.GlobalStat, error)
}

// Config tunes the stats sources.
type Config struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	Retries      int           `yaml:"retries" json:"retries"`
	RetryWait    time.Duration `yaml:"retry_wait" json:"retry_wait"`
	TreasuryURL  string        `yaml:"treasury_url" json:"treasury_url"`
	WorldBankURL string        `yaml:"world_bank_url" json:"world_bank_url"`
}

// DefaultConfig returns the stats defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		Retries:      2,
		RetryWait:    time.Second,
		TreasuryURL:  "https://api.fiscaldata.treasury.gov",
		WorldBankURL: "https://api.worldbank.org",
	}
}

// Defaults builds the built-in sources.
func Defaults(cfg Config) []Source {
	return []Source{
		NewTreasuryDebt(newClient(cfg, cfg.TreasuryURL)),
		NewWorldBankCO2(newClient(cfg, cfg.WorldBankURL)),
	}
}

// Fetcher runs sources by key.
type Fetcher struct {
	order   []string
	sources map[string]Source
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. Keys are reported in the order given.
func NewFetcher(timeout time.Duration, sources ...Source) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	f := &Fetcher{
		sources: make(map[string]Source, len(sources)),
		timeout: timeout,
		logger:  slog.Default(),
	}
	for _, s := range sources {
		if _, dup := f.sources[s.Key()]; dup {
			continue
		}
		f.order = append(f.order, s.Key())
		f.sources[s.Key()] = s
	}
	return f
}

// SetLogger overrides the default logger.
func (f *Fetcher) SetLogger(l *slog.Logger) { f.logger = l }

// Keys lists the stats this fetcher knows.
func (f *Fetcher) Keys() []string {
	return append([]string(nil), f.order...)
}

// FetchStat fetches one stat. A non-nil error is a *model.SourceError.
func (f *Fetcher) FetchStat(ctx context.Context, key string) (model.GlobalStat, error) {
	src, ok := f.sources[key]
	if !ok {
		serr := model.NewSourceError(model.DomainStat, key,
			fmt.Errorf("%w: unknown stat %q", model.ErrSourceUnavailable, key))
		return model.GlobalStat{}, &serr
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	stat, err := src.Fetch(ctx)
	if err != nil {
		f.logger.Warn("stat fetch failed", "stat", key, "error", err)
		serr := model.NewSourceError(model.DomainStat, key, err)
		return model.GlobalStat{}, &serr
	}
	stat.Key = key
	return stat, nil
}

func newClient(cfg Config, base string) *resty.Client {
	c := resty.New()
	c.SetBaseURL(strings.TrimRight(base, "/"))
	c.SetHeader("Accept", "application/json")
	c.SetRetryCount(cfg.Retries)
	c.SetRetryWaitTime(cfg.RetryWait)
	c.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})
	return c
}

func statusError(source string, resp *resty.Response) error {
	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: status %d", source, model.ErrRateLimited, code)
	default:
		return fmt.Errorf("%s: %w: status %d", source, model.ErrSourceUnavailable, code)
	}
}
