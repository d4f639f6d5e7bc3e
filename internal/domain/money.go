package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount in minor units as "120.00 AUD".
func FormatAmount(minor int64, currency string) string {
	s := decimal.New(minor, -2).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}
