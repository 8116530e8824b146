package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	pulsecfg "github.com/RobinCoderZhao/streampulse/internal/pulse/config"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/quotes"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/registry"
)

const storiesPerCategory = 5

// printSnapshot writes a plain-text view of snap.
func printSnapshot(w io.Writer, snap *model.Snapshot, reg *registry.Registry, now time.Time) {
	if !snap.Ready() {
		fmt.Fprintln(w, "No data yet: every source failed or timed out.")
		printErrors(w, snap.SourceErrors)
		return
	}
	fmt.Fprintf(w, "StreamPulse snapshot #%d, generated %s\n", snap.Sequence, humanize.RelTime(snap.GeneratedAt, now, "ago", "from now"))

	for _, c := range reg.Categories() {
		stories := snap.Stories(c)
		fmt.Fprintf(w, "\n== %s (%d) ==\n", c.Label(), len(stories))
		if len(stories) == 0 {
			fmt.Fprintln(w, "  (no stories)")
			continue
		}
		for i, s := range stories {
			if i == storiesPerCategory {
				fmt.Fprintf(w, "  ... %d more\n", len(stories)-i)
				break
			}
			fmt.Fprintf(w, "  [%s] %s (%s, %s)\n", sentimentMark(s.Sentiment), s.Title, s.Source, humanize.RelTime(s.PublishedAt, now, "ago", "from now"))
		}
	}

	fmt.Fprintln(w, "\n== Quotes ==")
	for _, sym := range reg.SymbolNames() {
		q, ok := snap.Quotes[sym]
		if !ok {
			fmt.Fprintf(w, "  %-6s unavailable\n", sym)
			continue
		}
		fmt.Fprintf(w, "  %-6s %12s %10s %8s  via %s (%s)\n",
			sym, formatMoney(q.Price), formatSigned(q.Change), formatSigned(q.ChangePercent)+"%", q.ProviderName, q.Provider)
	}

	if len(snap.Stats) > 0 {
		fmt.Fprintln(w, "\n== Global ==")
		keys := make([]string, 0, len(snap.Stats))
		for k := range snap.Stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			st := snap.Stats[k]
			fmt.Fprintf(w, "  %s: %s\n", st.Label, st.Display)
		}
	}

	printErrors(w, snap.SourceErrors)
}

func printErrors(w io.Writer, errs []model.SourceError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "\n== Errors (%d) ==\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}

func sentimentMark(s model.Sentiment) string {
	switch s {
	case model.Positive:
		return "+"
	case model.Negative:
		return "-"
	case model.Neutral:
		return "="
	default:
		return "?"
	}
}

func formatMoney(d decimal.Decimal) string {
	return "$" + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

func formatSigned(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		s = "+" + s
	}
	return s
}

type sourcesOutput struct {
	Feeds          map[model.Category][]model.FeedSource `json:"feeds"`
	Symbols        []registry.Symbol                     `json:"symbols"`
	QuoteProviders []string                              `json:"quote_providers"`
}

func sourcesView(reg *registry.Registry, cfg pulsecfg.Config) sourcesOutput {
	out := sourcesOutput{
		Feeds:          make(map[model.Category][]model.FeedSource, len(reg.Categories())),
		Symbols:        reg.Symbols(),
		QuoteProviders: providerNames(cfg.Quotes),
	}
	for _, c := range reg.Categories() {
		out.Feeds[c] = reg.Sources(c)
	}
	return out
}

func providerNames(cfg quotes.Config) []string {
	chain := quotes.Chain(cfg)
	names := make([]string, 0, len(chain))
	for _, p := range chain {
		names = append(names, p.Name())
	}
	return names
}

// printSources writes the registry as text.
func printSources(w io.Writer, reg *registry.Registry, cfg pulsecfg.Config) {
	for _, c := range reg.Categories() {
		sources := reg.Sources(c)
		fmt.Fprintf(w, "%s (%d feeds)\n", c.Label(), len(sources))
		for _, s := range sources {
			fmt.Fprintf(w, "  %d. %-24s %s\n", s.Order+1, s.Name, s.URL)
		}
	}

	syms := reg.Symbols()
	parts := make([]string, 0, len(syms))
	for _, s := range syms {
		parts = append(parts, s.Symbol)
	}
	fmt.Fprintf(w, "\nSymbols (%d): %s\n", len(syms), strings.Join(parts, " "))

	providers := providerNames(cfg.Quotes)
	if len(providers) == 0 {
		fmt.Fprintln(w, "Quote providers: none (set ALPHA_VANTAGE_API_KEY or FINNHUB_API_KEY)")
		return
	}
	fmt.Fprintf(w, "Quote providers: %s\n", strings.Join(providers, " -> "))
}
