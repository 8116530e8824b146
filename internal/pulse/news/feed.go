package news

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
	"github.com/RobinCoderZhao/streampulse/pkg/htmltext"
)

// maxFeedBytes bounds the feed body accepted for parsing.
const maxFeedBytes = 8 << 20

// fetchFeed downloads and parses one source. Transport failures and bad
// statuses wrap model.ErrSourceUnavailable once retries are spent;
// unparseable bodies wrap model.ErrParse.
func (f *Fetcher) fetchFeed(ctx context.Context, src model.FeedSource) (*gofeed.Feed, error) {
	resp, err := f.client.R().SetContext(ctx).Get(src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w: %v", src.Name, model.ErrSourceUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: %w: status %d", src.Name, model.ErrSourceUnavailable, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("parse feed %s: %w: body of %d bytes exceeds limit", src.Name, model.ErrParse, len(body))
	}

	// gofeed.Parser keeps per-parse state, so each fetch gets its own.
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w: %v", src.Name, model.ErrParse, err)
	}
	return feed, nil
}

// storiesFrom normalizes feed items into stories, newest first, capped at
// the configured per-source limit.
func (f *Fetcher) storiesFrom(src model.FeedSource, feed *gofeed.Feed, fetchedAt time.Time) []model.Story {
	stories := make([]model.Story, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := htmltext.Collapse(htmltext.Plain(item.Title))
		if title == "" {
			continue
		}

		published := fetchedAt
		switch {
		case item.PublishedParsed != nil:
			published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = *item.UpdatedParsed
		}

		raw := item.Description
		if raw == "" {
			raw = item.Content
		}
		summary := htmltext.Truncate(htmltext.Plain(raw), f.cfg.SummaryMaxLen)

		stories = append(stories, model.Story{
			ID:          StoryID(src.URL, title),
			Category:    src.Category,
			Title:       title,
			Summary:     summary,
			Link:        strings.TrimSpace(item.Link),
			PublishedAt: published.UTC(),
			Source:      src.Name,
			SourceURL:   src.URL,
			Sentiment:   model.SentimentUnknown,
		})
	}

	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].PublishedAt.After(stories[j].PublishedAt)
	})
	if len(stories) > f.cfg.MaxPerSource {
		stories = stories[:f.cfg.MaxPerSource]
	}
	return stories
}

// NormalizeTitle is the key used for deduplication within a category.
func NormalizeTitle(title string) string {
	return strings.ToLower(htmltext.Collapse(title))
}

// StoryID derives a stable identifier from the source URL and title.
func StoryID(sourceURL, title string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL+"\n"+NormalizeTitle(title))).String()
}
