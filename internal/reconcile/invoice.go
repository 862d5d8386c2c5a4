package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// InvoicePayment describes a completed credit card invoice payment.
type InvoicePayment struct {
	Transaction *domain.Transaction `json:"transaction"`
	BillsPaid   int64               `json:"bills_paid"`
	Invoice     domain.Invoice      `json:"invoice"`
}

// PayCardInvoice pays a card's full outstanding usage from accountID.
//
// It records one settlement transaction for the reconciled used amount, writes
// the card's used amount to zero and marks the card's open bills paid. A
// failure after the settlement exists is reported as a *PartialFailureError;
// the next recomputation still yields zero because the settlement offsets
// the purchases.
func (e *Engine) PayCardInvoice(ctx context.Context, cardID, accountID string, date time.Time) (*InvoicePayment, error) {
	log := logger.FromContext(ctx).With().Str("credit_card_id", cardID).Str("account_id", accountID).Logger()
	fields := map[string]interface{}{"credit_card_id": cardID, "account_id": accountID}

	if accountID == "" {
		return nil, fmt.Errorf("PayCardInvoice: %w: account id is required", domain.ErrInvalid)
	}

	card, err := e.store.GetCreditCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("PayCardInvoice: load card: %w", err)
	}
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("PayCardInvoice: load account: %w", err)
	}

	used, err := e.cardUsage(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("PayCardInvoice: %w", err)
	}
	if !used.IsPositive() {
		return nil, fmt.Errorf("PayCardInvoice: card %s owes %s: %w", cardID, used, domain.ErrNothingToPay)
	}

	if date.IsZero() {
		date = e.now()
	}
	now := e.now().UTC()
	settlement := &domain.Transaction{
		ID:           e.newID(),
		Description:  "Invoice payment: " + card.Name,
		Amount:       used,
		Type:         domain.TransactionExpense,
		Status:       domain.TransactionCompleted,
		Kind:         domain.KindSettlement,
		AccountID:    accountID,
		CreditCardID: cardID,
		Date:         date,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.InsertTransaction(ctx, settlement); err != nil {
		return nil, fmt.Errorf("PayCardInvoice: create settlement: %w", err)
	}

	defer e.cache.Invalidate(
		cache.Key{Kind: cache.KindCreditCard, ID: cardID},
		cache.Key{Kind: cache.KindAccount, ID: accountID},
		cache.All(cache.KindBill),
	)

	completed := []string{StepCreateSettlement}

	if err := e.store.UpdateCreditCardUsedAmount(ctx, cardID, decimal.Zero); err != nil {
		return nil, partial(ctx, OpPayCardInvoice, completed, StepZeroUsedAmount, err, fields)
	}
	completed = append(completed, StepZeroUsedAmount)

	paid, err := e.store.MarkCreditCardBillsPaid(ctx, cardID, settlement.ID)
	if err != nil {
		return nil, partial(ctx, OpPayCardInvoice, completed, StepMarkCardBills, err, fields)
	}

	log.Info().
		Str("transaction_id", settlement.ID).
		Str("amount", used.String()).
		Int64("bills_paid", paid).
		Msg("Card invoice paid")

	return &InvoicePayment{
		Transaction: settlement,
		BillsPaid:   paid,
		Invoice:     domain.InvoiceWindow(card, date),
	}, nil
}
