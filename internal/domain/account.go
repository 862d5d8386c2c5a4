package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account.
type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountCredit   AccountType = "credit"
)

// Account holds money. Balance is derived from completed transactions and is
// only a cached copy of that sum when read straight from storage.
type Account struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Validate checks field values before the account is written.
func (a *Account) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalid)
	}
	switch a.Type {
	case AccountChecking, AccountSavings, AccountCredit:
	default:
		return fmt.Errorf("%w: unknown account type %q", ErrInvalid, a.Type)
	}
	return nil
}
