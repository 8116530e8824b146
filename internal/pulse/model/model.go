// Package model defines the value types shared by the aggregation pipeline:
// stories, quotes, global stats and the immutable Snapshot handed to the
// display layer.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups feed sources and the stories they produce.
type Category string

const (
	General   Category = "general"
	Financial Category = "financial"
	Gaming    Category = "gaming"
	SciTech   Category = "scitech"
)

// Categories is the canonical category order.
var Categories = []Category{General, Financial, Gaming, SciTech}

// ParseCategory maps a config name to a Category.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case General, Financial, Gaming, SciTech:
		return Category(s), true
	}
	switch s {
	case "games", "video_games":
		return Gaming, true
	case "science", "tech", "science_tech":
		return SciTech, true
	case "finance":
		return Financial, true
	}
	return "", false
}

// Label returns the display name of the category.
func (c Category) Label() string {
	switch c {
	case General:
		return "General News"
	case Financial:
		return "Financial News"
	case Gaming:
		return "Video Games"
	case SciTech:
		return "Science & Tech"
	default:
		return string(c)
	}
}

// Sentiment is the classifier label attached to a story.
type Sentiment string

const (
	Positive         Sentiment = "positive"
	Neutral          Sentiment = "neutral"
	Negative         Sentiment = "negative"
	SentimentUnknown Sentiment = "unknown"
)

// FeedSource is one feed endpoint. Lower Order means higher priority within
// the category.
type FeedSource struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Order    int      `json:"order"`
}

// Story is a normalized feed entry.
type Story struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Link        string    `json:"link,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	SourceURL   string    `json:"source_url"`
	Sentiment   Sentiment `json:"sentiment"`
}

// ProviderRole records which position of the provider chain supplied a quote.
type ProviderRole string

const (
	Primary  ProviderRole = "primary"
	Fallback ProviderRole = "fallback"
)

// Quote is one symbol's price as reported by a single provider.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	AsOf          time.Time       `json:"as_of"`
	Provider      ProviderRole    `json:"provider"`
	ProviderName  string          `json:"provider_name"`
}

// GlobalStat is a slow-changing world statistic.
type GlobalStat struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Value   float64   `json:"value"`
	Display string    `json:"display"`
	Unit    string    `json:"unit,omitempty"`
	AsOf    time.Time `json:"as_of"`
}

// Snapshot is the complete merged view produced by one cycle. It is never
// mutated after it has been published; callers must treat every map and slice
// as read-only.
type Snapshot struct {
	StoriesByCategory map[Category][]Story  `json:"stories_by_category"`
	Quotes            map[string]Quote      `json:"quotes"`
	Stats             map[string]GlobalStat `json:"stats"`
	GeneratedAt       time.Time             `json:"generated_at"`
	SourceErrors      []SourceError         `json:"source_errors"`
	Sequence          uint64                `json:"sequence"`
}

// EmptySnapshot is the pre-first-cycle value. Every category is present with
// no stories.
func EmptySnapshot(categories []Category) *Snapshot {
	s := &Snapshot{
		StoriesByCategory: make(map[Category][]Story, len(categories)),
		Quotes:            map[string]Quote{},
		Stats:             map[string]GlobalStat{},
		SourceErrors:      []SourceError{},
	}
	for _, c := range categories {
		s.StoriesByCategory[c] = []Story{}
	}
	return s
}

// Ready reports whether at least one cycle has produced this snapshot.
func (s *Snapshot) Ready() bool {
	return s != nil && !s.GeneratedAt.IsZero()
}

// Stories returns the stories for a category (nil-safe).
func (s *Snapshot) Stories(c Category) []Story {
	if s == nil {
		return nil
	}
	return s.StoriesByCategory[c]
}

// ErrorsFor returns the recorded errors of one domain.
func (s *Snapshot) ErrorsFor(d Domain) []SourceError {
	if s == nil {
		return nil
	}
	var out []SourceError
	for _, e := range s.SourceErrors {
		if e.Domain == d {
			out = append(out, e)
		}
	}
	return out
}
