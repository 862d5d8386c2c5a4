package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/shopspring/decimal"
)

// FailHook is consulted before each store call with the method name and the
// primary id (empty for list calls). A non-nil return aborts the call.
type FailHook func(op, id string) error

// Store is an in-memory implementation of store.Store.
// It is safe for concurrent use and copies rows on the way in and out.
// Data is lost on restart - for persistence, use the sqlite or bigquery backends.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	cards        map[string]*domain.CreditCard
	bills        map[string]*domain.Bill
	hook         FailHook
	now          func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		cards:        make(map[string]*domain.CreditCard),
		bills:        make(map[string]*domain.Bill),
		now:          time.Now,
	}
}

// SetFailHook installs a hook for fault injection. Pass nil to clear it.
func (s *Store) SetFailHook(hook FailHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *Store) fail(op, id string) error {
	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(op, id)
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// ListAccounts implements store.AccountRepository.
func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	if err := s.fail("ListAccounts", ""); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

// GetAccount implements store.AccountRepository.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := s.fail("GetAccount", id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// InsertAccount implements store.AccountRepository.
func (s *Store) InsertAccount(ctx context.Context, a *domain.Account) error {
	if a.ID == "" {
		return fmt.Errorf("account ID is required")
	}
	if err := s.fail("InsertAccount", a.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

// DeleteAccount implements store.AccountRepository.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if err := s.fail("DeleteAccount", id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	delete(s.accounts, id)
	return nil
}

// UpdateAccountBalance implements store.AccountRepository.
func (s *Store) UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	if err := s.fail("UpdateAccountBalance", id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	a.Balance = balance
	a.UpdatedAt = s.now()
	return nil
}

// ListTransactionsByAccount implements store.TransactionRepository.
func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*domain.Transaction, error) {
	if err := s.fail("ListTransactionsByAccount", accountID); err != nil {
		return nil, err
	}
	return s.filterTransactions(store.TransactionFilter{AccountID: accountID, Status: status}), nil
}

// ListTransactionsByCreditCard implements store.TransactionRepository.
func (s *Store) ListTransactionsByCreditCard(ctx context.Context, cardID string, typ domain.TransactionType) ([]*domain.Transaction, error) {
	if err := s.fail("ListTransactionsByCreditCard", cardID); err != nil {
		return nil, err
	}
	return s.filterTransactions(store.TransactionFilter{CreditCardID: cardID, Type: typ}), nil
}

// ListTransactionsByBill implements store.TransactionRepository.
func (s *Store) ListTransactionsByBill(ctx context.Context, billID string) ([]*domain.Transaction, error) {
	if err := s.fail("ListTransactionsByBill", billID); err != nil {
		return nil, err
	}
	return s.filterTransactions(store.TransactionFilter{BillID: billID}), nil
}

// ListTransactions implements store.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	if err := s.fail("ListTransactions", ""); err != nil {
		return nil, err
	}
	return s.filterTransactions(filter), nil
}

func (s *Store) filterTransactions(filter store.TransactionFilter) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Transaction
	for _, t := range s.transactions {
		if !filter.Match(t) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].Date, out[i].ID, out[j].Date, out[j].ID) })
	return out
}

// InsertTransaction implements store.TransactionRepository.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if err := s.fail("InsertTransaction", t.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[t.ID]; exists {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

// UpdateTransaction implements store.TransactionRepository.
func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	if err := s.fail("UpdateTransaction", t.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[t.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", t.ID, domain.ErrNotFound)
	}
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

// DeleteTransaction implements store.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.fail("DeleteTransaction", id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	delete(s.transactions, id)
	return nil
}

// DeleteTransactionsByBill implements store.TransactionRepository.
func (s *Store) DeleteTransactionsByBill(ctx context.Context, billID string) (int64, error) {
	if err := s.fail("DeleteTransactionsByBill", billID); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.transactions {
		if t.BillID == billID {
			delete(s.transactions, id)
			n++
		}
	}
	return n, nil
}

// ListCreditCards implements store.CreditCardRepository.
func (s *Store) ListCreditCards(ctx context.Context) ([]*domain.CreditCard, error) {
	if err := s.fail("ListCreditCards", ""); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.CreditCard, 0, len(s.cards))
	for _, c := range s.cards {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

// GetCreditCard implements store.CreditCardRepository.
func (s *Store) GetCreditCard(ctx context.Context, id string) (*domain.CreditCard, error) {
	if err := s.fail("GetCreditCard", id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, fmt.Errorf("credit card %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// InsertCreditCard implements store.CreditCardRepository.
func (s *Store) InsertCreditCard(ctx context.Context, c *domain.CreditCard) error {
	if c.ID == "" {
		return fmt.Errorf("credit card ID is required")
	}
	if err := s.fail("InsertCreditCard", c.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cards[c.ID]; exists {
		return fmt.Errorf("credit card %s already exists", c.ID)
	}
	cp := *c
	s.cards[c.ID] = &cp
	return nil
}

// UpdateCreditCardUsedAmount implements store.CreditCardRepository.
func (s *Store) UpdateCreditCardUsedAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	if err := s.fail("UpdateCreditCardUsedAmount", id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok {
		return fmt.Errorf("credit card %s: %w", id, domain.ErrNotFound)
	}
	c.UsedAmount = amount
	c.UpdatedAt = s.now()
	return nil
}

// ListBills implements store.BillRepository.
func (s *Store) ListBills(ctx context.Context, filter store.BillFilter) ([]*domain.Bill, error) {
	if err := s.fail("ListBills", ""); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Bill
	for _, b := range s.bills {
		if !filter.Match(b) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].DueDate, out[i].ID, out[j].DueDate, out[j].ID) })
	return out, nil
}

// GetBill implements store.BillRepository.
func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	if err := s.fail("GetBill", id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[id]
	if !ok {
		return nil, fmt.Errorf("bill %s: %w", id, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// InsertBill implements store.BillRepository.
func (s *Store) InsertBill(ctx context.Context, b *domain.Bill) error {
	if b.ID == "" {
		return fmt.Errorf("bill ID is required")
	}
	if err := s.fail("InsertBill", b.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bills[b.ID]; exists {
		return fmt.Errorf("bill %s already exists", b.ID)
	}
	cp := *b
	s.bills[b.ID] = &cp
	return nil
}

// UpdateBillStatus implements store.BillRepository.
// The check and the write happen under one lock, which is what makes it a
// compare-and-set.
func (s *Store) UpdateBillStatus(ctx context.Context, id string, to domain.BillStatus, from ...domain.BillStatus) error {
	if err := s.fail("UpdateBillStatus", id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[id]
	if !ok {
		return fmt.Errorf("bill %s: %w", id, domain.ErrNotFound)
	}
	if len(from) > 0 && !statusIn(b.Status, from) {
		return fmt.Errorf("bill %s is %s: %w", id, b.Status, domain.ErrStatusConflict)
	}
	b.Status = to
	b.InvoiceSettlementID = ""
	b.UpdatedAt = s.now()
	return nil
}

// MarkCreditCardBillsPaid implements store.BillRepository.
func (s *Store) MarkCreditCardBillsPaid(ctx context.Context, cardID, settlementID string) (int64, error) {
	if err := s.fail("MarkCreditCardBillsPaid", cardID); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for _, b := range s.bills {
		if b.CreditCardID == cardID && b.Status.Payable() {
			b.Status = domain.BillPaid
			b.InvoiceSettlementID = settlementID
			b.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func statusIn(s domain.BillStatus, set []domain.BillStatus) bool {
	for _, c := range set {
		if s == c {
			return true
		}
	}
	return false
}

func before(ti time.Time, idi string, tj time.Time, idj string) bool {
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return idi < idj
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
