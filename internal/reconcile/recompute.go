package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecomputeAccountBalance folds transactions into a balance: completed income
// adds, completed expense subtracts. Other statuses are ignored.
func RecomputeAccountBalance(txs []*domain.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		if t.Status != domain.TransactionCompleted {
			continue
		}
		sum = sum.Add(t.Signed())
	}
	return sum
}

// RecomputeCreditCardUsage folds a card's expense transactions into its used
// amount. Pending and completed purchases add, settlements subtract, and
// cancelled or income entries are ignored.
func RecomputeCreditCardUsage(txs []*domain.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		if t.Type != domain.TransactionExpense || t.Status == domain.TransactionCancelled {
			continue
		}
		if t.IsSettlement() {
			sum = sum.Sub(t.Amount)
		} else {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}

// ListAccounts returns every account with its balance recomputed from the
// ledger. A failed sub-query leaves that account's stored balance in place.
func (e *Engine) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}

	out := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		reconciled, fresh := e.reconcileAccount(ctx, a)
		if fresh {
			e.cache.Put(cache.Key{Kind: cache.KindAccount, ID: a.ID}, *reconciled)
		}
		out = append(out, reconciled)
	}
	return out, nil
}

// GetAccount returns one reconciled account, served from the cache when possible.
func (e *Engine) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	key := cache.Key{Kind: cache.KindAccount, ID: id}
	if v, ok := e.cache.Lookup(key); ok {
		a := v.(domain.Account)
		return &a, nil
	}

	a, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	reconciled, fresh := e.reconcileAccount(ctx, a)
	if fresh {
		e.cache.Put(key, *reconciled)
	}
	return reconciled, nil
}

// ListCreditCards returns every card with its used amount recomputed.
func (e *Engine) ListCreditCards(ctx context.Context) ([]*domain.CreditCard, error) {
	cards, err := e.store.ListCreditCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCreditCards: %w", err)
	}

	out := make([]*domain.CreditCard, 0, len(cards))
	for _, c := range cards {
		reconciled, fresh := e.reconcileCard(ctx, c)
		if fresh {
			e.cache.Put(cache.Key{Kind: cache.KindCreditCard, ID: c.ID}, *reconciled)
		}
		out = append(out, reconciled)
	}
	return out, nil
}

// GetCreditCard returns one reconciled card, served from the cache when possible.
func (e *Engine) GetCreditCard(ctx context.Context, id string) (*domain.CreditCard, error) {
	key := cache.Key{Kind: cache.KindCreditCard, ID: id}
	if v, ok := e.cache.Lookup(key); ok {
		c := v.(domain.CreditCard)
		return &c, nil
	}

	c, err := e.store.GetCreditCard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetCreditCard: %w", err)
	}
	reconciled, fresh := e.reconcileCard(ctx, c)
	if fresh {
		e.cache.Put(key, *reconciled)
	}
	return reconciled, nil
}

// reconcileAccount returns a copy of a with the recomputed balance. fresh is
// false when the sub-query failed and the stored balance was kept.
func (e *Engine) reconcileAccount(ctx context.Context, a *domain.Account) (*domain.Account, bool) {
	out := *a

	computed, err := e.accountBalance(ctx, a.ID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("account_id", a.ID).Msg("Keeping stored balance, recompute failed")
		observability.RecomputeErrors.WithLabelValues("account").Inc()
		return &out, false
	}

	if e.drifted(computed, a.Balance) {
		observability.DriftCorrections.WithLabelValues("account").Inc()
		e.writeBack(ctx, jobs.EntityAccountBalance, a.ID, computed, a.Balance)
		out.Balance = computed
	}
	return &out, true
}

func (e *Engine) reconcileCard(ctx context.Context, c *domain.CreditCard) (*domain.CreditCard, bool) {
	out := *c

	computed, err := e.cardUsage(ctx, c.ID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("credit_card_id", c.ID).Msg("Keeping stored used amount, recompute failed")
		observability.RecomputeErrors.WithLabelValues("credit_card").Inc()
		return &out, false
	}

	if e.drifted(computed, c.UsedAmount) {
		observability.DriftCorrections.WithLabelValues("credit_card").Inc()
		e.writeBack(ctx, jobs.EntityCreditCardUsedAmount, c.ID, computed, c.UsedAmount)
		out.UsedAmount = computed
	}
	return &out, true
}

func (e *Engine) accountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	txs, err := e.store.ListTransactionsByAccount(ctx, accountID, domain.TransactionCompleted)
	if err != nil {
		return decimal.Zero, fmt.Errorf("accountBalance: list transactions: %w", err)
	}
	return RecomputeAccountBalance(txs), nil
}

func (e *Engine) cardUsage(ctx context.Context, cardID string) (decimal.Decimal, error) {
	txs, err := e.store.ListTransactionsByCreditCard(ctx, cardID, domain.TransactionExpense)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cardUsage: list transactions: %w", err)
	}
	return RecomputeCreditCardUsage(txs), nil
}

// writeBack schedules persistence of a corrected value. It never fails the
// caller: errors are logged and counted.
func (e *Engine) writeBack(ctx context.Context, entity jobs.Entity, id string, value, previous decimal.Decimal) {
	log := logger.FromContext(ctx)

	if e.publisher == nil {
		if err := e.persist(ctx, entity, id, value); err != nil {
			log.Warn().Err(err).Str("entity", string(entity)).Str("entity_id", id).Msg("Write-back failed")
			observability.WriteBacks.WithLabelValues("failed").Inc()
			return
		}
		observability.WriteBacks.WithLabelValues("completed").Inc()
		return
	}

	job := &jobs.WriteBackJob{
		JobID:     uuid.NewString(),
		Entity:    entity,
		EntityID:  id,
		Value:     value,
		Previous:  previous,
		Status:    jobs.JobStatusPending,
		CreatedAt: e.now().UTC(),
	}
	if err := e.publisher.PublishWriteBack(ctx, job); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueClosed) {
			observability.WriteBacks.WithLabelValues("dropped").Inc()
		} else {
			observability.WriteBacks.WithLabelValues("failed").Inc()
		}
		log.Warn().Err(err).Str("entity", string(entity)).Str("entity_id", id).Msg("Write-back not scheduled")
		return
	}

	log.Debug().
		Str("job_id", job.JobID).
		Str("entity", string(entity)).
		Str("entity_id", id).
		Str("previous", previous.String()).
		Str("value", value.String()).
		Msg("Write-back scheduled")
}

func (e *Engine) persist(ctx context.Context, entity jobs.Entity, id string, value decimal.Decimal) error {
	switch entity {
	case jobs.EntityAccountBalance:
		return e.store.UpdateAccountBalance(ctx, id, value)
	case jobs.EntityCreditCardUsedAmount:
		return e.store.UpdateCreditCardUsedAmount(ctx, id, value)
	default:
		return fmt.Errorf("persist: unknown entity %q", entity)
	}
}

// WriteBackHandler returns the job handler that persists write-back jobs.
// Returning an error lets the queue retry.
func (e *Engine) WriteBackHandler() jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		wb, ok := job.(*jobs.WriteBackJob)
		if !ok {
			return fmt.Errorf("WriteBackHandler: unexpected job type %s", job.GetType())
		}

		log := e.log.With().
			Str("job_id", wb.JobID).
			Str("entity", string(wb.Entity)).
			Str("entity_id", wb.EntityID).
			Logger()

		if err := e.persist(ctx, wb.Entity, wb.EntityID, wb.Value); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// The entity was deleted after the read; nothing to correct.
				log.Info().Msg("Write-back target no longer exists")
				observability.WriteBacks.WithLabelValues("dropped").Inc()
				return nil
			}
			log.Warn().Err(err).Int("retry", wb.RetryCount).Msg("Write-back failed")
			if wb.RetryCount >= wb.MaxRetries {
				observability.WriteBacks.WithLabelValues("failed").Inc()
			}
			return err
		}

		log.Info().Str("value", wb.Value.String()).Msg("Write-back persisted")
		observability.WriteBacks.WithLabelValues("completed").Inc()
		return nil
	}
}
