package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a canonical amount with thousand separators and an
// upper-cased currency code, e.g. "NGN 12,500".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return sign + formatThousand(amount)
	}
	return fmt.Sprintf("%s%s %s", sign, code, formatThousand(amount))
}

// ToMinorUnits converts canonical units to the gateway's smallest unit.
func ToMinorUnits(amount, factor int64) int64 {
	if factor <= 0 {
		factor = 1
	}
	return amount * factor
}

// FromMinorUnits converts a gateway amount back to canonical units without
// rounding, so fractional differences survive comparison.
func FromMinorUnits(minor, factor int64) decimal.Decimal {
	if factor <= 0 {
		factor = 1
	}
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(factor))
}

// ParseAmount parses "12,500" or "12500" into canonical units.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)
	if s == "" {
		return 0, fmt.Errorf("invalid amount")
	}
	return strconv.ParseInt(s, 10, 64)
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
