// Package sentiment labels story text using a locally hosted language model.
// Classification never fails from the caller's point of view: any problem
// yields model.SentimentUnknown.
package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
	"github.com/RobinCoderZhao/streampulse/pkg/llm"
)

// Classifier maps text to a sentiment label.
type Classifier interface {
	Classify(ctx context.Context, text string) model.Sentiment
}

// Nop is used when no classifier is configured.
type Nop struct{}

func (Nop) Classify(context.Context, string) model.Sentiment { return model.SentimentUnknown }

// Config controls the classifier wrapper.
type Config struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" env:"SENTIMENT_ENABLED"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" env:"SENTIMENT_TIMEOUT"`
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`
	MaxInput int           `yaml:"max_input" json:"max_input"`
	LLM      llm.Config    `yaml:"llm" json:"llm"`
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Timeout:  3 * time.Second,
		Cooldown: 30 * time.Second,
		MaxInput: 1000,
		LLM:      llm.DefaultConfig(),
	}
}

const systemPrompt = "You are a sentiment classifier for news headlines. " +
	"Reply with exactly one word: positive, neutral or negative."

// Client classifies text through an llm.Client with a hard timeout.
type Client struct {
	llm      llm.Client
	model    string
	timeout  time.Duration
	cooldown time.Duration
	maxInput int
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	downUntil time.Time
}

// New wraps c. Zero values in cfg fall back to DefaultConfig.
func New(c llm.Client, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.MaxInput <= 0 {
		cfg.MaxInput = def.MaxInput
	}
	return &Client{
		llm:      c,
		model:    cfg.LLM.Model,
		timeout:  cfg.Timeout,
		cooldown: cfg.Cooldown,
		maxInput: cfg.MaxInput,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// SetLogger overrides the default logger.
func (c *Client) SetLogger(l *slog.Logger) { c.logger = l }

type result struct {
	label model.Sentiment
	err   error
}

// Classify returns the label for text. A call that outlives the timeout is
// abandoned; the in-flight request keeps running until its own context
// expires but its answer is dropped.
func (c *Client) Classify(ctx context.Context, text string) model.Sentiment {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.SentimentUnknown
	}
	if c.coolingDown() {
		return model.SentimentUnknown
	}
	if r := []rune(text); len(r) > c.maxInput {
		text = string(r[:c.maxInput])
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Buffered so the goroutine can always finish after we stop listening.
	done := make(chan result, 1)
	go func() {
		label, err := c.classify(ctx, text)
		done <- result{label: label, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			c.failUnlessCancelled(parent, r.err)
			return model.SentimentUnknown
		}
		return r.label
	case <-ctx.Done():
		c.failUnlessCancelled(parent, fmt.Errorf("%w: %v", model.ErrClassifierUnavailable, ctx.Err()))
		return model.SentimentUnknown
	}
}

// failUnlessCancelled starts the cooldown only when the classifier itself
// failed. A caller that gave up says nothing about the classifier's health.
func (c *Client) failUnlessCancelled(parent context.Context, err error) {
	if parent.Err() != nil {
		c.logger.Debug("sentiment call abandoned by caller", "error", err)
		return
	}
	c.fail(err)
}

func (c *Client) classify(ctx context.Context, text string) (model.Sentiment, error) {
	resp, err := c.llm.Generate(ctx, &llm.Request{
		System:   systemPrompt,
		Messages: []llm.Message{{Role: "user", Content: text}},
	})
	if err != nil {
		return model.SentimentUnknown, fmt.Errorf("%w: %v", model.ErrClassifierUnavailable, err)
	}
	label, ok := ParseLabel(resp.Content)
	if !ok {
		// An unparseable answer is not an outage; no cooldown.
		c.logger.Debug("unrecognised classifier reply", "reply", resp.Content)
	}
	return label, nil
}

func (c *Client) coolingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.downUntil)
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.downUntil = c.now().Add(c.cooldown)
	c.mu.Unlock()
	c.logger.Warn("sentiment classifier failed", "error", err, "cooldown", c.cooldown)
}

// Probe checks that the classifier endpoint is reachable and serves the
// configured model.
func (c *Client) Probe(ctx context.Context) error {
	models, err := c.llm.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrClassifierUnavailable, err)
	}
	if !llm.HasModel(models, c.model) {
		return fmt.Errorf("%w: %w: %s", model.ErrClassifierUnavailable, llm.ErrModelNotFound, c.model)
	}
	return nil
}

var (
	wordRe  = regexp.MustCompile(`[a-z]+`)
	scoreRe = regexp.MustCompile(`^[-+]?\d*\.?\d+$`)
)

// ParseLabel maps a model reply to a label. It accepts the bare labels, common
// synonyms, and a numeric score in [-1, 1].
func ParseLabel(reply string) (model.Sentiment, bool) {
	s := strings.ToLower(strings.TrimSpace(reply))
	s = strings.Trim(s, ".!\"'`*")
	if s == "" {
		return model.SentimentUnknown, false
	}

	if scoreRe.MatchString(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.SentimentUnknown, false
		}
		switch {
		case v > 0.2:
			return model.Positive, true
		case v < -0.2:
			return model.Negative, true
		default:
			return model.Neutral, true
		}
	}

	for _, w := range wordRe.FindAllString(s, -1) {
		switch w {
		case "positive", "pos", "optimistic", "bullish", "good":
			return model.Positive, true
		case "negative", "neg", "pessimistic", "bearish", "bad":
			return model.Negative, true
		case "neutral", "mixed", "objective":
			return model.Neutral, true
		}
	}
	return model.SentimentUnknown, false
}
