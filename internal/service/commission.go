package service

import (
	"fmt"

	"ride-settlement/internal/core/domain"

	"github.com/shopspring/decimal"
)

// PercentageCommission charges Rate of the requested amount, never less
// than Minimum and never more than the amount itself.
type PercentageCommission struct {
	Rate    decimal.Decimal
	Minimum decimal.Decimal
}

// NewPercentageCommission parses rate (a fraction in [0, 1]) and minimum.
func NewPercentageCommission(rate, minimum string) (*PercentageCommission, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("commission rate %q: %w", rate, err)
	}
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s outside [0, 1]", rate)
	}
	m, err := decimal.NewFromString(minimum)
	if err != nil {
		return nil, fmt.Errorf("commission minimum %q: %w", minimum, err)
	}
	if m.IsNegative() {
		return nil, fmt.Errorf("commission minimum %s is negative", minimum)
	}
	return &PercentageCommission{Rate: r, Minimum: m.Round(domain.AmountScale)}, nil
}

func (p *PercentageCommission) Calculate(order *domain.Order) (decimal.Decimal, error) {
	if order == nil {
		return decimal.Zero, fmt.Errorf("commission for nil order")
	}
	c := order.RequestedAmount.Mul(p.Rate).Round(domain.AmountScale)
	if c.LessThan(p.Minimum) {
		c = p.Minimum
	}
	if c.GreaterThan(order.RequestedAmount) {
		c = order.RequestedAmount
	}
	return c, nil
}
