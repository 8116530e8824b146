package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// Finnhub queries the /api/v1/quote endpoint.
type Finnhub struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewFinnhub creates the provider.
func NewFinnhub(cfg FinnhubConfig) *Finnhub {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultConfig().Finnhub.BaseURL
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(base, "/"))
	client.SetHeader("X-Finnhub-Token", cfg.APIKey)
	return &Finnhub{
		client:  client,
		limiter: newLimiter(cfg.RequestsPerMinute, cfg.Burst),
	}
}

func (f *Finnhub) Name() string { return "finnhub" }

type finnhubQuote struct {
	Current       json.Number `json:"c"`
	Change        json.Number `json:"d"`
	ChangePercent json.Number `json:"dp"`
	Timestamp     int64       `json:"t"`
}

func (f *Finnhub) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return model.Quote{}, fmt.Errorf("%s: %w: %v", f.Name(), model.ErrRateLimited, err)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		Get("/api/v1/quote")
	if err != nil {
		return model.Quote{}, fmt.Errorf("%s: %w: %w", f.Name(), model.ErrSourceUnavailable, err)
	}
	if err := statusError(f.Name(), resp); err != nil {
		return model.Quote{}, err
	}

	var body finnhubQuote
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.Quote{}, fmt.Errorf("%s: %w: %v", f.Name(), model.ErrParse, err)
	}

	price, err := decimal.NewFromString(body.Current.String())
	// Unknown symbols come back as an all-zero quote.
	if err != nil || (price.IsZero() && body.Timestamp == 0) {
		return model.Quote{}, fmt.Errorf("%s: %w: no price for %s", f.Name(), model.ErrParse, symbol)
	}
	change := decimalOrZero(body.Change)
	pct := decimalOrZero(body.ChangePercent)

	asOf := time.Now().UTC()
	if body.Timestamp > 0 {
		asOf = time.Unix(body.Timestamp, 0).UTC()
	}

	return model.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		AsOf:          asOf,
	}, nil
}

func decimalOrZero(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
