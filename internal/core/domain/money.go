package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fraction digits money is stored and transmitted with.
const AmountScale = 2

// amountPattern matches what fits a NUMERIC(18,2) column written in plain
// decimal notation.
var amountPattern = regexp.MustCompile(`^\d{1,16}(\.\d{1,2})?$`)

var (
	ErrInvalidAmount   = errors.New("amount must be a positive decimal with at most two fraction digits")
	ErrInvalidCurrency = errors.New("currency must be a three-letter code")
)

// ParseAmount parses a positive monetary amount such as "50.00". Exponent
// notation and values wider than sixteen integer digits are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects zero, negative and sub-cent amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !d.Equal(d.Round(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseBalance parses a stored balance. Unlike ParseAmount it accepts zero
// and negative values.
func ParseBalance(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return d, nil
}

// FormatAmount renders d with exactly two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// NormalizeCurrency upper-cases and validates an ISO-4217 style code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}
