package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

const (
	KeyUSDebt    = "us_debt"
	KeyGlobalCO2 = "global_co2"
)

// TreasuryDebt reads total public debt outstanding from the Fiscal Data
// debt_to_penny dataset.
type TreasuryDebt struct {
	client *resty.Client
}

// NewTreasuryDebt creates the source.
func NewTreasuryDebt(c *resty.Client) *TreasuryDebt { return &TreasuryDebt{client: c} }

func (t *TreasuryDebt) Key() string { return KeyUSDebt }

type treasuryResponse struct {
	Data []struct {
		Amount     string `json:"tot_pub_debt_out_amt"`
		RecordDate string `json:"record_date"`
	} `json:"data"`
}

func (t *TreasuryDebt) Fetch(ctx context.Context) (model.GlobalStat, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "tot_pub_debt_out_amt,record_date",
			"sort":         "-record_date",
			"page[number]": "1",
			"page[size]":   "1",
		}).
		Get("/services/api/fiscal_service/v2/accounting/od/debt_to_penny")
	if err != nil {
		return model.GlobalStat{}, fmt.Errorf("treasury: %w: %w", model.ErrSourceUnavailable, err)
	}
	if err := statusError("treasury", resp); err != nil {
		return model.GlobalStat{}, err
	}

	var body treasuryResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.GlobalStat{}, fmt.Errorf("treasury: %w: %v", model.ErrParse, err)
	}
	if len(body.Data) == 0 {
		return model.GlobalStat{}, fmt.Errorf("treasury: %w: empty data", model.ErrParse)
	}

	rec := body.Data[0]
	amount, err := strconv.ParseFloat(rec.Amount, 64)
	if err != nil {
		return model.GlobalStat{}, fmt.Errorf("treasury: %w: amount %q", model.ErrParse, rec.Amount)
	}
	asOf, err := time.Parse("2006-01-02", rec.RecordDate)
	if err != nil {
		return model.GlobalStat{}, fmt.Errorf("treasury: %w: record date %q", model.ErrParse, rec.RecordDate)
	}

	return model.GlobalStat{
		Key:     KeyUSDebt,
		Label:   "U.S. National Debt",
		Value:   amount,
		Display: FormatDebt(amount, asOf),
		Unit:    "USD",
		AsOf:    asOf,
	}, nil
}

// WorldBankCO2 reads world CO2 emissions (kt) from the World Bank
// EN.ATM.CO2E.KT indicator.
type WorldBankCO2 struct {
	client *resty.Client
}

// NewWorldBankCO2 creates the source.
func NewWorldBankCO2(c *resty.Client) *WorldBankCO2 { return &WorldBankCO2{client: c} }

func (w *WorldBankCO2) Key() string { return KeyGlobalCO2 }

type worldBankPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func (w *WorldBankCO2) Fetch(ctx context.Context) (model.GlobalStat, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":   "json",
			"per_page": "10",
		}).
		Get("/v2/country/WLD/indicator/EN.ATM.CO2E.KT")
	if err != nil {
		return model.GlobalStat{}, fmt.Errorf("worldbank: %w: %w", model.ErrSourceUnavailable, err)
	}
	if err := statusError("worldbank", resp); err != nil {
		return model.GlobalStat{}, err
	}

	// The payload is [pageInfo, [points...]]; errors come back as
	// [{"message": [...]}] with a 200 status.
	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return model.GlobalStat{}, fmt.Errorf("worldbank: %w: %v", model.ErrParse, err)
	}
	if len(raw) < 2 {
		return model.GlobalStat{}, fmt.Errorf("worldbank: %w: unexpected payload", model.ErrParse)
	}
	var points []worldBankPoint
	if err := json.Unmarshal(raw[1], &points); err != nil {
		return model.GlobalStat{}, fmt.Errorf("worldbank: %w: %v", model.ErrParse, err)
	}

	// Newest years are often published without a value yet.
	for _, p := range points {
		if p.Value == nil {
			continue
		}
		year, err := strconv.Atoi(p.Date)
		if err != nil {
			continue
		}
		return model.GlobalStat{
			Key:     KeyGlobalCO2,
			Label:   "Global CO2 Emissions",
			Value:   *p.Value,
			Display: FormatCO2(*p.Value),
			Unit:    "kt",
			AsOf:    time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		}, nil
	}
	return model.GlobalStat{}, fmt.Errorf("worldbank: %w: no data points", model.ErrParse)
}

// FormatDebt renders a dollar amount with thousands separators and the
// record date, e.g. "$36,218,604,871,663.55 (as of 2025-03-03)".
func FormatDebt(amount float64, asOf time.Time) string {
	return fmt.Sprintf("$%s (as of %s)", humanize.FormatFloat("#,###.##", amount), asOf.Format("2006-01-02"))
}

// FormatCO2 renders kilotonnes with thousands separators.
func FormatCO2(kt float64) string {
	return humanize.Comma(int64(math.Round(kt))) + " kt CO2"
}
