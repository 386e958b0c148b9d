package presentation

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "₹ "

const currencyFraction = 2

var rupee = money.NewFormatter(currencyFraction, ".", ",", CurrencySymbol, "$1")

// FormatCurrency renders an amount as "₹ 1,234.56", rounding to two decimals.
// Negative amounts get a leading minus: "-₹ 2.00".
func FormatCurrency(amount decimal.Decimal) string {
	minor := amount.Shift(currencyFraction).Round(0).IntPart()
	return rupee.Format(minor)
}

// FormatPercentage renders " (P.PP%)" with a leading space.
func FormatPercentage(p decimal.Decimal) string {
	return " (" + p.StringFixed(2) + "%)"
}
