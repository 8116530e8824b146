package quotes

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// AlphaVantageConfig configures the primary provider.
type AlphaVantageConfig struct {
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	APIKey            string  `yaml:"api_key" json:"-" env:"ALPHA_VANTAGE_API_KEY"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// FinnhubConfig configures the fallback provider.
type FinnhubConfig struct {
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	APIKey            string  `yaml:"api_key" json:"-" env:"FINNHUB_API_KEY"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// Config groups the quote chain settings.
type Config struct {
	AttemptTimeout time.Duration      `yaml:"attempt_timeout" json:"attempt_timeout" env:"QUOTE_ATTEMPT_TIMEOUT"`
	AlphaVantage   AlphaVantageConfig `yaml:"alpha_vantage" json:"alpha_vantage"`
	Finnhub        FinnhubConfig      `yaml:"finnhub" json:"finnhub"`
}

// DefaultConfig matches the free-tier limits of both providers.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 5 * time.Second,
		AlphaVantage: AlphaVantageConfig{
			BaseURL:           "https://www.alphavantage.co",
			RequestsPerMinute: 5,
			Burst:             5,
		},
		Finnhub: FinnhubConfig{
			BaseURL:           "https://finnhub.io",
			RequestsPerMinute: 60,
			Burst:             10,
		},
	}
}

// Chain builds the default provider chain from cfg. Providers without an
// API key are left out.
func Chain(cfg Config) []Provider {
	var chain []Provider
	if cfg.AlphaVantage.APIKey != "" {
		chain = append(chain, NewAlphaVantage(cfg.AlphaVantage))
	}
	if cfg.Finnhub.APIKey != "" {
		chain = append(chain, NewFinnhub(cfg.Finnhub))
	}
	return chain
}

// newLimiter paces requests to one provider. A non-positive rate disables
// pacing.
func newLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 || math.IsInf(perMinute, 1) {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perMinute/60.0), burst)
}
