package presentation

import (
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/holdings-service/internal/models"
)

// PercentageUnavailableText is shown when the investment total is zero.
const PercentageUnavailableText = " (--%)"

var hundred = decimal.NewFromInt(100)

// Row is the display model of a single holding
type Row struct {
	Symbol        string `json:"symbol"`
	QuantityText  string `json:"quantity_text"`
	PriceText     string `json:"price_text"`
	PnLText       string `json:"pnl_text"`
	PnLIsPositive bool   `json:"pnl_is_positive"`
}

// Summary is the aggregate display model of all holdings
type Summary struct {
	CurrentValue decimal.Decimal `json:"current_value"`
	Investment   decimal.Decimal `json:"investment"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	TodaysPnL    decimal.Decimal `json:"todays_pnl"`
	// Percentage is TotalPnL relative to Investment; meaningless unless PercentageAvailable.
	Percentage          decimal.Decimal `json:"percentage"`
	PercentageAvailable bool            `json:"percentage_available"`

	CurrentValueText    string `json:"current_value_text"`
	InvestmentText      string `json:"investment_text"`
	TotalPnLText        string `json:"total_pnl_text"`
	TodaysPnLText       string `json:"todays_pnl_text"`
	PercentageText      string `json:"percentage_text"`
	TotalPnLIsPositive  bool   `json:"total_pnl_is_positive"`
	TodaysPnLIsPositive bool   `json:"todays_pnl_is_positive"`
}

// SortHoldings returns a copy ordered by symbol, byte-wise ascending.
// Equal symbols keep their input order.
func SortHoldings(holdings []models.Holding) []models.Holding {
	sorted := slices.Clone(holdings)
	slices.SortStableFunc(sorted, func(a, b models.Holding) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return sorted
}

// BuildRow maps one holding to its row display model.
func BuildRow(h models.Holding) Row {
	pnl := h.TotalPnL()
	return Row{
		Symbol:        h.Symbol,
		QuantityText:  "NET QTY: " + strconv.FormatInt(h.QuantityOrZero(), 10),
		PriceText:     "LTP: " + FormatCurrency(h.LTPOrZero()),
		PnLText:       FormatCurrency(pnl),
		PnLIsPositive: !pnl.IsNegative(),
	}
}

// BuildRows maps holdings to rows, preserving order.
func BuildRows(holdings []models.Holding) []Row {
	rows := make([]Row, 0, len(holdings))
	for _, h := range holdings {
		rows = append(rows, BuildRow(h))
	}
	return rows
}

// BuildSummary aggregates holdings. It returns nil for an empty input.
func BuildSummary(holdings []models.Holding) *Summary {
	if len(holdings) == 0 {
		return nil
	}

	current := decimal.Zero
	investment := decimal.Zero
	todays := decimal.Zero
	for _, h := range holdings {
		current = current.Add(h.CurrentValue())
		investment = investment.Add(h.InvestmentValue())
		todays = todays.Add(h.TodaysPnL())
	}
	total := current.Sub(investment)

	s := &Summary{
		CurrentValue:        current,
		Investment:          investment,
		TotalPnL:            total,
		TodaysPnL:           todays,
		CurrentValueText:    FormatCurrency(current),
		InvestmentText:      FormatCurrency(investment),
		TotalPnLText:        FormatCurrency(total),
		TodaysPnLText:       FormatCurrency(todays),
		TotalPnLIsPositive:  !total.IsNegative(),
		TodaysPnLIsPositive: !todays.IsNegative(),
		PercentageText:      PercentageUnavailableText,
	}

	// decimal.Div panics on a zero divisor
	if !investment.IsZero() {
		s.Percentage = total.Div(investment).Mul(hundred)
		s.PercentageAvailable = true
		s.PercentageText = FormatPercentage(s.Percentage)
	}

	return s
}
