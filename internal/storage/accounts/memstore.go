package accounts

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/internal/domain"
)

type account struct {
	mu       sync.Mutex
	handle   string
	balances map[domain.Currency]decimal.Decimal
}

// MemStore is an in-memory balance store. Each account carries its own lock;
// multi-account batches take locks in ascending account-id order so two
// opposite-direction transfers cannot deadlock.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[string]*account
	handles  map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts: make(map[string]*account),
		handles:  make(map[string]string),
	}
}

// CreateAccount registers an account with its starting balances. Account
// creation belongs to registration, outside the engine's scope; the store
// exposes it for wiring and tests.
func (s *MemStore) CreateAccount(id, handle string, initial map[domain.Currency]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; ok {
		return errors.Errorf("account %s already exists", id)
	}

	balances := make(map[domain.Currency]decimal.Decimal, len(domain.SupportedCurrencies()))
	for _, c := range domain.SupportedCurrencies() {
		balances[c] = decimal.Zero
	}
	for c, amount := range initial {
		if amount.IsNegative() {
			return errors.Errorf("negative initial %s balance for account %s", c, id)
		}
		balances[c] = amount
	}

	s.accounts[id] = &account{handle: handle, balances: balances}
	if handle != "" {
		s.handles[handle] = id
	}
	return nil
}

func (s *MemStore) Adjust(_ context.Context, accountID string, currency domain.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	acc, err := s.lookup(accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	next := acc.balances[currency].Add(delta)
	if next.IsNegative() {
		return decimal.Decimal{}, errors.Wrapf(domain.ErrInsufficientFunds, "account %s has %s %s, needs %s",
			accountID, acc.balances[currency], currency, delta.Neg())
	}

	acc.balances[currency] = next
	return next, nil
}

func (s *MemStore) AtomicMultiAdjust(_ context.Context, adjustments []domain.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	accs := make(map[string]*account, len(adjustments))
	ids := make([]string, 0, len(adjustments))
	for _, adj := range adjustments {
		if _, ok := accs[adj.AccountID]; ok {
			continue
		}
		acc, err := s.lookup(adj.AccountID)
		if err != nil {
			return err
		}
		accs[adj.AccountID] = acc
		ids = append(ids, adj.AccountID)
	}

	// fixed lock acquisition order across all callers
	sort.Strings(ids)
	for _, id := range ids {
		accs[id].mu.Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			accs[ids[i]].mu.Unlock()
		}
	}()

	// validate the whole batch against tentative balances before touching
	// anything, so a late failure leaves no partial state
	type slot struct {
		accountID string
		currency  domain.Currency
	}
	tentative := make(map[slot]decimal.Decimal, len(adjustments))
	for _, adj := range adjustments {
		k := slot{adj.AccountID, adj.Currency}
		current, ok := tentative[k]
		if !ok {
			current = accs[adj.AccountID].balances[adj.Currency]
		}
		next := current.Add(adj.Delta)
		if next.IsNegative() {
			return errors.Wrapf(domain.ErrInsufficientFunds, "account %s has %s %s, needs %s",
				adj.AccountID, current, adj.Currency, adj.Delta.Neg())
		}
		tentative[k] = next
	}

	for k, next := range tentative {
		accs[k.accountID].balances[k.currency] = next
	}
	return nil
}

func (s *MemStore) Balances(_ context.Context, accountID string) (map[domain.Currency]decimal.Decimal, error) {
	acc, err := s.lookup(accountID)
	if err != nil {
		return nil, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	balances := make(map[domain.Currency]decimal.Decimal, len(acc.balances))
	for c, amount := range acc.balances {
		balances[c] = amount
	}
	return balances, nil
}

func (s *MemStore) ResolveHandle(_ context.Context, handle string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.handles[handle]
	if !ok {
		return "", errors.Wrapf(domain.ErrAccountNotFound, "handle %s", handle)
	}
	return id, nil
}

func (s *MemStore) lookup(accountID string) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrAccountNotFound, "account %s", accountID)
	}
	return acc, nil
}
