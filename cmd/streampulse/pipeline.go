package main

import (
	"context"
	"log/slog"

	pulsecfg "github.com/RobinCoderZhao/streampulse/internal/pulse/config"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/news"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/quotes"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/registry"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/scheduler"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/sentiment"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/stats"
	"github.com/RobinCoderZhao/streampulse/pkg/llm"
)

type pipeline struct {
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
}

// buildPipeline wires the registry, fetchers and scheduler from cfg.
func buildPipeline(ctx context.Context, cfg pulsecfg.Config, logger *slog.Logger) (*pipeline, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	classifier := buildClassifier(ctx, cfg.Sentiment, logger)

	newsFetcher := news.NewFetcher(reg, classifier, cfg.News)
	newsFetcher.SetLogger(logger)

	chain := quotes.Chain(cfg.Quotes)
	if len(chain) == 0 {
		logger.Warn("no quote provider API keys configured, quotes will report unavailable",
			"env", []string{"ALPHA_VANTAGE_API_KEY", "FINNHUB_API_KEY"})
	}
	quoteFetcher := quotes.NewFetcher(cfg.Quotes.AttemptTimeout, chain...)
	quoteFetcher.SetLogger(logger)

	statFetcher := stats.NewFetcher(cfg.Stats.Timeout, stats.Defaults(cfg.Stats)...)
	statFetcher.SetLogger(logger)

	sched := scheduler.New(cfg.Scheduler, scheduler.Deps{
		Categories: reg.Categories(),
		Symbols:    reg.SymbolNames(),
		News:       newsFetcher,
		Quotes:     quoteFetcher,
		Stats:      statFetcher,
	})
	sched.SetLogger(logger)

	logger.Info("pipeline ready",
		"categories", len(reg.Categories()),
		"feeds", reg.SourceCount(),
		"symbols", len(reg.SymbolNames()),
		"quote_providers", quoteFetcher.Providers(),
		"stats", statFetcher.Keys())

	return &pipeline{registry: reg, scheduler: sched}, nil
}

// buildClassifier returns a no-op classifier when sentiment is disabled or
// the client cannot be built. An unreachable endpoint only logs a warning;
// stories are labelled unknown until it comes back.
func buildClassifier(ctx context.Context, cfg sentiment.Config, logger *slog.Logger) sentiment.Classifier {
	if !cfg.Enabled {
		return sentiment.Nop{}
	}
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		logger.Warn("sentiment disabled", "error", err)
		return sentiment.Nop{}
	}
	c := sentiment.New(client, cfg)
	c.SetLogger(logger)

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := c.Probe(probeCtx); err != nil {
		logger.Warn("sentiment classifier not ready", "model", cfg.LLM.Model, "url", cfg.LLM.BaseURL, "error", err)
	}
	return c
}
