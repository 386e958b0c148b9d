package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingSymbol is returned when a holding is built without a symbol.
	ErrMissingSymbol = errors.New("holding symbol is required")
	// ErrDecode marks a record that could not be decoded into a Holding.
	ErrDecode = errors.New("failed to decode holding")
)

// Holding represents a single position held by the user.
// Build it with NewHolding or by decoding JSON; both reject an empty symbol.
type Holding struct {
	Symbol          string              `json:"symbol"`
	Quantity        *int64              `json:"quantity,omitempty"`
	LastTradedPrice decimal.NullDecimal `json:"ltp"`
	AveragePrice    decimal.NullDecimal `json:"avg_price"`
	PreviousClose   decimal.NullDecimal `json:"close"`
}

// NewHolding builds a Holding, failing when symbol is empty.
func NewHolding(symbol string, quantity *int64, ltp, avgPrice, close decimal.NullDecimal) (Holding, error) {
	if symbol == "" {
		return Holding{}, ErrMissingSymbol
	}
	return Holding{
		Symbol:          symbol,
		Quantity:        quantity,
		LastTradedPrice: ltp,
		AveragePrice:    avgPrice,
		PreviousClose:   close,
	}, nil
}

// qty returns the quantity as a decimal, zero when absent.
func (h Holding) qty() decimal.Decimal {
	if h.Quantity == nil {
		return decimal.Zero
	}
	return decimal.NewFromInt(*h.Quantity)
}

// QuantityOrZero returns the held quantity, or 0 when it is not known.
func (h Holding) QuantityOrZero() int64 {
	if h.Quantity == nil {
		return 0
	}
	return *h.Quantity
}

// LTPOrZero returns the last traded price, or 0 when it is not known.
func (h Holding) LTPOrZero() decimal.Decimal {
	return valueOrZero(h.LastTradedPrice)
}

// CurrentValue = quantity * ltp
func (h Holding) CurrentValue() decimal.Decimal {
	return h.qty().Mul(valueOrZero(h.LastTradedPrice))
}

// InvestmentValue = quantity * average price
func (h Holding) InvestmentValue() decimal.Decimal {
	return h.qty().Mul(valueOrZero(h.AveragePrice))
}

// TotalPnL = current value - investment value
func (h Holding) TotalPnL() decimal.Decimal {
	return h.CurrentValue().Sub(h.InvestmentValue())
}

// TodaysPnL = (close - ltp) * quantity, zero unless both prices are known.
func (h Holding) TodaysPnL() decimal.Decimal {
	if !h.LastTradedPrice.Valid || !h.PreviousClose.Valid {
		return decimal.Zero
	}
	return h.PreviousClose.Decimal.Sub(h.LastTradedPrice.Decimal).Mul(h.qty())
}

func valueOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// holdingRecord is the wire shape of a holding; every field may be absent.
type holdingRecord struct {
	Symbol   *string             `json:"symbol"`
	Quantity *int64              `json:"quantity"`
	LTP      decimal.NullDecimal `json:"ltp"`
	AvgPrice decimal.NullDecimal `json:"avg_price"`
	Close    decimal.NullDecimal `json:"close"`
}

// UnmarshalJSON decodes a holding record and rejects records without a symbol.
func (h *Holding) UnmarshalJSON(data []byte) error {
	var rec holdingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	symbol := ""
	if rec.Symbol != nil {
		symbol = *rec.Symbol
	}
	holding, err := NewHolding(symbol, rec.Quantity, rec.LTP, rec.AvgPrice, rec.Close)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	*h = holding
	return nil
}

// DecodeHoldings decodes each raw record independently. Records that fail to
// decode are skipped and reported through the returned errors.
func DecodeHoldings(records []json.RawMessage) ([]Holding, []error) {
	holdings := make([]Holding, 0, len(records))
	var errs []error
	for i, raw := range records {
		var h Holding
		if err := json.Unmarshal(raw, &h); err != nil {
			if !errors.Is(err, ErrDecode) {
				err = fmt.Errorf("%w: %w", ErrDecode, err)
			}
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		holdings = append(holdings, h)
	}
	return holdings, errs
}
