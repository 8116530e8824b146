package scheduler

import (
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// shortResult is what a news+quotes cycle collected before its deadline.
type shortResult struct {
	stories   map[model.Category][]model.Story
	quotes    map[string]model.Quote
	errs      []model.SourceError
	successes int
}

// longResult is what a stats cycle collected before its deadline.
type longResult struct {
	stats     map[string]model.GlobalStat
	errs      []model.SourceError
	successes int
}

// mergeShort builds the snapshot following a news+quotes cycle. Stories are
// never carried forward; a symbol without a fresh quote keeps its previous
// one. Stats and their errors come from prev unchanged. It returns false when
// nothing in the cycle succeeded.
func mergeShort(prev *model.Snapshot, categories []model.Category, symbols []string, r shortResult, now time.Time) (*model.Snapshot, bool) {
	if r.successes == 0 {
		return nil, false
	}

	next := &model.Snapshot{
		StoriesByCategory: make(map[model.Category][]model.Story, len(categories)),
		Quotes:            make(map[string]model.Quote, len(symbols)),
		Stats:             copyStats(prev.Stats),
		GeneratedAt:       now,
	}
	for _, c := range categories {
		stories := r.stories[c]
		if stories == nil {
			stories = []model.Story{}
		}
		next.StoriesByCategory[c] = stories
	}
	for _, sym := range symbols {
		if q, ok := r.quotes[sym]; ok {
			next.Quotes[sym] = q
		} else if q, ok := prev.Quotes[sym]; ok {
			next.Quotes[sym] = q
		}
	}

	next.SourceErrors = append(next.SourceErrors, prev.ErrorsFor(model.DomainStat)...)
	next.SourceErrors = append(next.SourceErrors, r.errs...)
	if next.SourceErrors == nil {
		next.SourceErrors = []model.SourceError{}
	}
	return next, true
}

// mergeLong builds the snapshot following a stats cycle. A stat without a
// fresh value keeps its previous one. Everything else comes from prev.
func mergeLong(prev *model.Snapshot, keys []string, r longResult, now time.Time) (*model.Snapshot, bool) {
	if r.successes == 0 {
		return nil, false
	}

	next := &model.Snapshot{
		StoriesByCategory: make(map[model.Category][]model.Story, len(prev.StoriesByCategory)),
		Quotes:            make(map[string]model.Quote, len(prev.Quotes)),
		Stats:             make(map[string]model.GlobalStat, len(keys)),
		GeneratedAt:       now,
	}
	for c, s := range prev.StoriesByCategory {
		next.StoriesByCategory[c] = s
	}
	for sym, q := range prev.Quotes {
		next.Quotes[sym] = q
	}
	for _, k := range keys {
		if s, ok := r.stats[k]; ok {
			next.Stats[k] = s
		} else if s, ok := prev.Stats[k]; ok {
			next.Stats[k] = s
		}
	}

	next.SourceErrors = []model.SourceError{}
	for _, e := range prev.SourceErrors {
		if e.Domain != model.DomainStat {
			next.SourceErrors = append(next.SourceErrors, e)
		}
	}
	next.SourceErrors = append(next.SourceErrors, r.errs...)
	return next, true
}

func copyStats(in map[string]model.GlobalStat) map[string]model.GlobalStat {
	out := make(map[string]model.GlobalStat, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
