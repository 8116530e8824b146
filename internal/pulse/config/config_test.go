package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streampulse.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("TEST_AV_KEY", "from-env")
	path := writeConfig(t, `
scheduler:
  short_interval: 2m
  cycle_deadline: 45s
news:
  max_per_source: 5
quotes:
  alpha_vantage:
    api_key: ${TEST_AV_KEY}
sentiment:
  llm:
    model: qwen3:4b
feeds:
  financial:
    - name: A
      url: https://a.example.com/rss
symbols: [aapl, nvda]
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scheduler.ShortInterval != 2*time.Minute || cfg.Scheduler.CycleDeadline != 45*time.Second {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.LongInterval != time.Hour {
		t.Errorf("expected default long interval, got %s", cfg.Scheduler.LongInterval)
	}
	if cfg.News.MaxPerSource != 5 || cfg.News.SourceTimeout != 8*time.Second {
		t.Errorf("news = %+v", cfg.News)
	}
	if cfg.Quotes.AlphaVantage.APIKey != "from-env" {
		t.Errorf("expected expanded api key, got %q", cfg.Quotes.AlphaVantage.APIKey)
	}
	if cfg.Sentiment.LLM.Model != "qwen3:4b" || cfg.Sentiment.Timeout != 3*time.Second {
		t.Errorf("sentiment = %+v", cfg.Sentiment)
	}

	reg, err := cfg.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if cats := reg.Categories(); len(cats) != 1 || cats[0] != model.Financial {
		t.Errorf("categories = %v", cats)
	}
	syms := reg.Symbols()
	if len(syms) != 2 || syms[0].Symbol != "AAPL" || syms[0].Name != "Apple" {
		t.Errorf("symbols = %+v", syms)
	}
	if cfg.Log.NewLogger() == nil {
		t.Error("expected logger")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "fh")
	t.Setenv("PULSE_SHORT_INTERVAL", "90s")
	t.Setenv("STREAMPULSE_SYMBOLS", "MSFT,GOOGL")
	t.Setenv("SENTIMENT_MODEL", "llama3.2")
	path := writeConfig(t, "http:\n  addr: \":9090\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Quotes.Finnhub.APIKey != "fh" {
		t.Errorf("finnhub key = %q", cfg.Quotes.Finnhub.APIKey)
	}
	if cfg.Scheduler.ShortInterval != 90*time.Second {
		t.Errorf("short interval = %s", cfg.Scheduler.ShortInterval)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "GOOGL" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.Sentiment.LLM.Model != "llama3.2" {
		t.Errorf("model = %q", cfg.Sentiment.LLM.Model)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.HTTP.Addr)
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultConfig().Registry()
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Categories()) != len(model.Categories) || len(reg.Symbols()) != 25 {
		t.Fatalf("expected built-in catalog, got %d categories, %d symbols", len(reg.Categories()), len(reg.Symbols()))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"deadline past interval", func(c *Config) { c.Scheduler.CycleDeadline = 2 * c.Scheduler.ShortInterval }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}
