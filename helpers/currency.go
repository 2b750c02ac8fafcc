package helpers

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRubles formats an amount as whole rubles with space thousand separators, e.g. "12 345 ₽"
func FormatRubles(amount decimal.Decimal) string {
	value := amount.Round(0).String()

	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	var b strings.Builder
	length := len(value)
	for i, digit := range value {
		if i > 0 && (length-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(digit)
	}

	if negative {
		return "-" + b.String() + " ₽"
	}
	return b.String() + " ₽"
}
