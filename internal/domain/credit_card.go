package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CardStatus is whether a card accepts new purchases.
type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardBlocked CardStatus = "blocked"
)

// CreditCard tracks spending against a limit. UsedAmount is derived from the
// card's expense transactions.
type CreditCard struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CardLimit  decimal.Decimal `json:"card_limit"`
	UsedAmount decimal.Decimal `json:"used_amount"`
	DueDay     int             `json:"due_day"`
	ClosingDay int             `json:"closing_day"`
	Status     CardStatus      `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Available returns the remaining limit, never below zero.
func (c *CreditCard) Available() decimal.Decimal {
	left := c.CardLimit.Sub(c.UsedAmount)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Validate checks field values before the card is written.
func (c *CreditCard) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: card name is required", ErrInvalid)
	}
	if c.CardLimit.IsNegative() {
		return fmt.Errorf("%w: card limit must not be negative", ErrInvalid)
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return fmt.Errorf("%w: due day %d out of range", ErrInvalid, c.DueDay)
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return fmt.Errorf("%w: closing day %d out of range", ErrInvalid, c.ClosingDay)
	}
	switch c.Status {
	case CardActive, CardBlocked:
	default:
		return fmt.Errorf("%w: unknown card status %q", ErrInvalid, c.Status)
	}
	return nil
}
