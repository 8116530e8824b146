// Package registry holds the static catalog of feed sources per category and
// the ticker symbols tracked by the quote fetcher.
package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// Symbol is ticker metadata for one tracked instrument.
type Symbol struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name,omitempty"`
}

// FeedConfig is one feed entry as written in the config file. Sources are
// prioritized by their position in the list.
type FeedConfig struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Config is the config-file form of the registry.
type Config struct {
	Feeds   map[string][]FeedConfig `yaml:"feeds"`
	Symbols []Symbol                `yaml:"symbols"`
}

// Registry is immutable after construction; accessors return copies.
type Registry struct {
	categories []model.Category
	feeds      map[model.Category][]model.FeedSource
	symbols    []Symbol
}

// New validates cfg and builds a Registry. Categories appear in canonical
// order; a category listed with no feeds is still present.
func New(cfg Config) (*Registry, error) {
	r := &Registry{feeds: make(map[model.Category][]model.FeedSource)}

	for name, feeds := range cfg.Feeds {
		cat, ok := model.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown feed category %q", name)
		}
		if _, dup := r.feeds[cat]; dup {
			return nil, fmt.Errorf("feed category %q configured twice", cat)
		}
		sources := make([]model.FeedSource, 0, len(feeds))
		for i, f := range feeds {
			if _, err := url.ParseRequestURI(f.URL); err != nil {
				return nil, fmt.Errorf("feed %s[%d]: invalid url %q: %w", cat, i, f.URL, err)
			}
			name := f.Name
			if name == "" {
				name = hostOf(f.URL)
			}
			sources = append(sources, model.FeedSource{
				Category: cat,
				Name:     name,
				URL:      f.URL,
				Order:    i,
			})
		}
		r.feeds[cat] = sources
	}

	for _, c := range model.Categories {
		if _, ok := r.feeds[c]; ok {
			r.categories = append(r.categories, c)
		}
	}

	seen := make(map[string]bool)
	for _, s := range cfg.Symbols {
		sym := strings.ToUpper(strings.TrimSpace(s.Symbol))
		if sym == "" {
			return nil, fmt.Errorf("empty ticker symbol")
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		r.symbols = append(r.symbols, Symbol{Symbol: sym, Name: s.Name})
	}

	return r, nil
}

// Categories returns the configured categories in canonical order.
func (r *Registry) Categories() []model.Category {
	return append([]model.Category(nil), r.categories...)
}

// Sources returns the feeds of a category ordered by priority.
func (r *Registry) Sources(c model.Category) []model.FeedSource {
	out := append([]model.FeedSource(nil), r.feeds[c]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Symbols returns the tracked ticker symbols.
func (r *Registry) Symbols() []Symbol {
	return append([]Symbol(nil), r.symbols...)
}

// SymbolNames returns just the ticker strings.
func (r *Registry) SymbolNames() []string {
	out := make([]string, len(r.symbols))
	for i, s := range r.symbols {
		out[i] = s.Symbol
	}
	return out
}

// SourceCount returns the number of feeds across all categories.
func (r *Registry) SourceCount() int {
	n := 0
	for _, f := range r.feeds {
		n += len(f)
	}
	return n
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
