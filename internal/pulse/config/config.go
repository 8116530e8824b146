// Package config assembles the StreamPulse configuration from defaults, an
// optional YAML file and environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/news"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/quotes"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/registry"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/scheduler"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/sentiment"
	"github.com/RobinCoderZhao/streampulse/internal/pulse/stats"
	appconfig "github.com/RobinCoderZhao/streampulse/pkg/config"
)

// FileName is the config file looked up in the working and home directories.
const FileName = ".streampulse.yaml"

// Config is the full runtime configuration.
type Config struct {
	Scheduler scheduler.Config `yaml:"scheduler"`
	News      news.Config      `yaml:"news"`
	Quotes    quotes.Config    `yaml:"quotes"`
	Stats     stats.Config     `yaml:"stats"`
	Sentiment sentiment.Config `yaml:"sentiment"`

	// Feeds maps a category name to its feeds in priority order. Empty means
	// the built-in catalog.
	Feeds map[string][]registry.FeedConfig `yaml:"feeds"`
	// Symbols lists tickers to track. Empty means the built-in list.
	Symbols []string `yaml:"symbols" env:"STREAMPULSE_SYMBOLS"`

	HTTP HTTPConfig `yaml:"http"`
	Log  LogConfig  `yaml:"log"`
}

// HTTPConfig controls the read-only snapshot API.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"STREAMPULSE_HTTP_ADDR"` // empty disables the server
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"LOG_FORMAT"` // text or json
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Scheduler: scheduler.DefaultConfig(),
		News:      news.DefaultConfig(),
		Quotes:    quotes.DefaultConfig(),
		Stats:     stats.DefaultConfig(),
		Sentiment: sentiment.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path when given. Otherwise it looks for FileName in the working
// directory, then the home directory. Environment variables override both.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := appconfig.Load(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, cfg.Validate()
	}

	// Check project-level config first
	if _, err := os.Stat(FileName); err == nil {
		if err := appconfig.Load(FileName, &cfg); err != nil {
			return cfg, err
		}
		return cfg, cfg.Validate()
	}

	// Then check home directory
	globalPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalPath = filepath.Join(home, FileName)
	}
	if err := appconfig.LoadOrDefault(globalPath, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Scheduler.CycleDeadline > 0 && c.Scheduler.ShortInterval > 0 &&
		c.Scheduler.CycleDeadline > c.Scheduler.ShortInterval {
		return fmt.Errorf("scheduler.cycle_deadline (%s) exceeds scheduler.short_interval (%s)",
			c.Scheduler.CycleDeadline, c.Scheduler.ShortInterval)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Registry builds the source registry. Symbols listed without metadata pick
// up names from the built-in list.
func (c Config) Registry() (*registry.Registry, error) {
	def := registry.DefaultConfig()
	rc := registry.Config{Feeds: c.Feeds, Symbols: def.Symbols}
	if len(rc.Feeds) == 0 {
		rc.Feeds = def.Feeds
	}
	if len(c.Symbols) > 0 {
		names := make(map[string]string, len(def.Symbols))
		for _, s := range def.Symbols {
			names[s.Symbol] = s.Name
		}
		rc.Symbols = make([]registry.Symbol, 0, len(c.Symbols))
		for _, s := range c.Symbols {
			sym := strings.ToUpper(strings.TrimSpace(s))
			rc.Symbols = append(rc.Symbols, registry.Symbol{Symbol: sym, Name: names[sym]})
		}
	}
	r, err := registry.New(rc)
	if err != nil {
		return nil, fmt.Errorf("build source registry: %w", err)
	}
	return r, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger builds the process logger.
func (c LogConfig) NewLogger() *slog.Logger {
	level, _ := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
