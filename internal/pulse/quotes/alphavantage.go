package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// AlphaVantage queries the GLOBAL_QUOTE function.
type AlphaVantage struct {
	client  *resty.Client
	apiKey  string
	limiter *rate.Limiter
}

// NewAlphaVantage creates the provider.
func NewAlphaVantage(cfg AlphaVantageConfig) *AlphaVantage {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultConfig().AlphaVantage.BaseURL
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(base, "/"))
	client.SetHeader("Accept", "application/json")
	return &AlphaVantage{
		client:  client,
		apiKey:  cfg.APIKey,
		limiter: newLimiter(cfg.RequestsPerMinute, cfg.Burst),
	}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

type avResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
}

func (a *AlphaVantage) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return model.Quote{}, fmt.Errorf("%s: %w: %v", a.Name(), model.ErrRateLimited, err)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   symbol,
			"apikey":   a.apiKey,
		}).
		Get("/query")
	if err != nil {
		return model.Quote{}, fmt.Errorf("%s: %w: %w", a.Name(), model.ErrSourceUnavailable, err)
	}
	if err := statusError(a.Name(), resp); err != nil {
		return model.Quote{}, err
	}

	var body avResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.Quote{}, fmt.Errorf("%s: %w: %v", a.Name(), model.ErrParse, err)
	}

	// Throttled requests still return 200 with an explanatory note.
	if body.Note != "" || body.Information != "" {
		msg := body.Note
		if msg == "" {
			msg = body.Information
		}
		return model.Quote{}, fmt.Errorf("%s: %w: %s", a.Name(), model.ErrRateLimited, msg)
	}
	if body.ErrorMessage != "" {
		return model.Quote{}, fmt.Errorf("%s: %w: %s", a.Name(), model.ErrSourceUnavailable, body.ErrorMessage)
	}

	q := body.GlobalQuote
	price, err := decimal.NewFromString(q["05. price"])
	if err != nil {
		return model.Quote{}, fmt.Errorf("%s: %w: no price for %s", a.Name(), model.ErrParse, symbol)
	}
	change, _ := decimal.NewFromString(q["09. change"])
	pct, _ := decimal.NewFromString(strings.TrimSuffix(q["10. change percent"], "%"))

	asOf := time.Now().UTC()
	if d, err := time.Parse("2006-01-02", q["07. latest trading day"]); err == nil {
		asOf = d
	}

	return model.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		AsOf:          asOf,
	}, nil
}

// statusError maps non-200 responses onto the error sentinels.
func statusError(provider string, resp *resty.Response) error {
	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: status %d", provider, model.ErrRateLimited, code)
	default:
		return fmt.Errorf("%s: %w: status %d", provider, model.ErrSourceUnavailable, code)
	}
}
