package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	ErrInvalidPercent = errors.New("discount percent must be greater than 0 and below 100")
)

// ParsePercent parses a discount percentage such as "15" or "12.5".
func ParsePercent(raw string) (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if err != nil {
		return decimal.Zero, ErrInvalidPercent
	}
	if err := ValidatePercent(pct); err != nil {
		return decimal.Zero, err
	}
	return pct, nil
}

// ValidatePercent enforces 0 < pct < 100.
func ValidatePercent(pct decimal.Decimal) error {
	if !pct.IsPositive() || pct.GreaterThanOrEqual(hundred) {
		return ErrInvalidPercent
	}
	return nil
}

// ApplyPercentOff discounts a minor-unit price, rounding half away from zero to the minor unit.
func ApplyPercentOff(price int64, pct decimal.Decimal) int64 {
	factor := hundred.Sub(pct).Div(hundred)
	return decimal.NewFromInt(price).Mul(factor).Round(0).IntPart()
}

// FormatMinor renders minor units with two decimals, e.g. 1250 -> "12.50".
func FormatMinor(amount int64) string {
	return decimal.NewFromInt(amount).Shift(-2).StringFixed(2)
}

// LineTotal multiplies a unit price by quantity.
func LineTotal(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}
