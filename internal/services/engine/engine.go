// Package engine orchestrates balance mutations: it validates requests,
// resolves rates, applies atomic balance adjustments and records every
// outcome in the ledger.
package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/internal/domain"
	"github.com/tonex/tonex/internal/storage/accounts"
	"go.uber.org/zap"
)

// RateProvider resolves the current market rate for a pair.
type RateProvider interface {
	CurrentRate(ctx context.Context, pair domain.Pair) (domain.RateSnapshot, error)
}

// Ledger records operation outcomes and answers history queries.
type Ledger interface {
	Append(entry domain.LedgerEntry) (string, error)
	FindByParticipant(accountID string, kind domain.EntryKind) ([]domain.LedgerEntry, error)
}

// Engine applies exchange, transfer and deposit operations. Every completed
// or rejected business operation leaves exactly one ledger entry; validation
// failures stop before any side effect.
type Engine struct {
	accounts accounts.Store
	ledger   Ledger
	rates    RateProvider
	// basePair the pair the rate provider quotes; reverse exchanges divide.
	basePair domain.Pair
	logger   *zap.Logger
}

// New creates a transaction engine.
func New(logger *zap.Logger, store accounts.Store, ledger Ledger, rates RateProvider) *Engine {
	return &Engine{
		accounts: store,
		ledger:   ledger,
		rates:    rates,
		basePair: domain.Pair{From: domain.TON, To: domain.USDT},
		logger:   logger,
	}
}

// ExchangeResult is the outcome of a completed exchange.
type ExchangeResult struct {
	ConvertedAmount decimal.Decimal
	Rate            domain.RateSnapshot
	NewBalance      map[domain.Currency]decimal.Decimal
	EntryID         string
}

// TransferResult is the outcome of a completed transfer.
type TransferResult struct {
	NewBalance map[domain.Currency]decimal.Decimal
	EntryID    string
}

// DepositResult is the outcome of a completed deposit.
type DepositResult struct {
	NewBalance map[domain.Currency]decimal.Decimal
	EntryID    string
}

// Rate returns the current market rate snapshot for the base pair.
func (e *Engine) Rate(ctx context.Context) (domain.RateSnapshot, error) {
	return e.rates.CurrentRate(ctx, e.basePair)
}

// Balances returns the principal's balances.
func (e *Engine) Balances(ctx context.Context, principal domain.Principal) (map[domain.Currency]decimal.Decimal, error) {
	return e.accounts.Balances(ctx, principal.UserID)
}

// Exchange converts amount between the principal's own currency balances at
// the current market rate.
func (e *Engine) Exchange(ctx context.Context, principal domain.Principal, from, to domain.Currency, amount decimal.Decimal) (ExchangeResult, error) {
	if err := validateAmount(amount); err != nil {
		return ExchangeResult{}, err
	}
	if from == to {
		return ExchangeResult{}, errors.Wrap(domain.ErrInvalidInput, "exchange requires two different currencies")
	}

	snapshot, err := e.rates.CurrentRate(ctx, e.basePair)
	if err != nil {
		return ExchangeResult{}, err
	}

	var converted decimal.Decimal
	switch {
	case from == e.basePair.From && to == e.basePair.To:
		converted = amount.Mul(snapshot.Value).RoundBank(domain.Scale)
	case from == e.basePair.To && to == e.basePair.From:
		converted = amount.Div(snapshot.Value).RoundBank(domain.Scale)
	default:
		return ExchangeResult{}, errors.Wrapf(domain.ErrInvalidInput, "unsupported currency pair %s_%s", from, to)
	}
	if !converted.IsPositive() {
		return ExchangeResult{}, errors.Wrap(domain.ErrInvalidInput, "amount too small to convert")
	}

	entry := domain.LedgerEntry{
		Kind:         domain.KindExchange,
		FromUser:     principal.UserID,
		FromCurrency: from,
		ToCurrency:   to,
		Amount:       amount,
		Rate:         snapshot.Value,
	}

	adjustments := []domain.Adjustment{
		{AccountID: principal.UserID, Currency: from, Delta: amount.Neg()},
		{AccountID: principal.UserID, Currency: to, Delta: converted},
	}
	if err := e.apply(ctx, &entry, adjustments); err != nil {
		return ExchangeResult{}, err
	}

	balances, err := e.accounts.Balances(ctx, principal.UserID)
	if err != nil {
		return ExchangeResult{}, err
	}

	e.logger.Info("exchange completed",
		zap.String("user", principal.UserID),
		zap.String("pair", from.String()+"_"+to.String()),
		zap.String("amount", amount.String()),
		zap.String("converted", converted.String()),
		zap.String("rate", snapshot.Value.String()),
		zap.String("rate_origin", string(snapshot.Origin)))

	return ExchangeResult{
		ConvertedAmount: converted,
		Rate:            snapshot,
		NewBalance:      balances,
		EntryID:         entry.ID,
	}, nil
}

// Transfer moves amount of one currency from the principal to the account
// behind recipientHandle.
func (e *Engine) Transfer(ctx context.Context, principal domain.Principal, recipientHandle string, currency domain.Currency, amount decimal.Decimal) (TransferResult, error) {
	if err := validateAmount(amount); err != nil {
		return TransferResult{}, err
	}
	if !currency.Valid() {
		return TransferResult{}, errors.Wrapf(domain.ErrInvalidInput, "unsupported currency %q", currency)
	}
	if recipientHandle == "" {
		return TransferResult{}, errors.Wrap(domain.ErrInvalidInput, "recipient is required")
	}

	entry := domain.LedgerEntry{
		Kind:         domain.KindTransfer,
		FromUser:     principal.UserID,
		FromCurrency: currency,
		ToCurrency:   currency,
		Amount:       amount,
		Rate:         decimal.NewFromInt(1),
	}

	recipientID, err := e.accounts.ResolveHandle(ctx, recipientHandle)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			e.recordFailure(&entry)
			return TransferResult{}, errors.Wrapf(domain.ErrRecipientNotFound, "handle %s", recipientHandle)
		}
		return TransferResult{}, err
	}
	if recipientID == principal.UserID {
		return TransferResult{}, errors.Wrap(domain.ErrInvalidInput, "cannot transfer to yourself")
	}
	entry.ToUser = recipientID

	adjustments := []domain.Adjustment{
		{AccountID: principal.UserID, Currency: currency, Delta: amount.Neg()},
		{AccountID: recipientID, Currency: currency, Delta: amount},
	}
	if err := e.apply(ctx, &entry, adjustments); err != nil {
		return TransferResult{}, err
	}

	balances, err := e.accounts.Balances(ctx, principal.UserID)
	if err != nil {
		return TransferResult{}, err
	}

	e.logger.Info("transfer completed",
		zap.String("from", principal.UserID),
		zap.String("to", recipientID),
		zap.String("currency", currency.String()),
		zap.String("amount", amount.String()))

	return TransferResult{NewBalance: balances, EntryID: entry.ID}, nil
}

// Deposit credits amount to the principal's balance.
func (e *Engine) Deposit(ctx context.Context, principal domain.Principal, currency domain.Currency, amount decimal.Decimal) (DepositResult, error) {
	if err := validateAmount(amount); err != nil {
		return DepositResult{}, err
	}
	if !currency.Valid() {
		return DepositResult{}, errors.Wrapf(domain.ErrInvalidInput, "unsupported currency %q", currency)
	}

	entry := domain.LedgerEntry{
		Kind:         domain.KindDeposit,
		FromUser:     principal.UserID,
		ToUser:       principal.UserID,
		FromCurrency: currency,
		ToCurrency:   currency,
		Amount:       amount,
		Rate:         decimal.NewFromInt(1),
	}

	adjustments := []domain.Adjustment{
		{AccountID: principal.UserID, Currency: currency, Delta: amount},
	}
	if err := e.apply(ctx, &entry, adjustments); err != nil {
		return DepositResult{}, err
	}

	balances, err := e.accounts.Balances(ctx, principal.UserID)
	if err != nil {
		return DepositResult{}, err
	}

	e.logger.Info("deposit completed",
		zap.String("user", principal.UserID),
		zap.String("currency", currency.String()),
		zap.String("amount", amount.String()))

	return DepositResult{NewBalance: balances, EntryID: entry.ID}, nil
}

// History returns the principal's ledger entries, newest first. An empty
// kind matches every kind.
func (e *Engine) History(_ context.Context, principal domain.Principal, kind domain.EntryKind) ([]domain.LedgerEntry, error) {
	return e.ledger.FindByParticipant(principal.UserID, kind)
}

// apply runs the balance adjustments and the ledger write as one unit:
// either all adjustments land together with a completed entry, or no
// adjustment survives. A business rejection still records a failed entry so
// the rejection is auditable.
func (e *Engine) apply(ctx context.Context, entry *domain.LedgerEntry, adjustments []domain.Adjustment) error {
	if err := e.accounts.AtomicMultiAdjust(ctx, adjustments); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			e.recordFailure(entry)
		}
		return err
	}

	entry.Status = domain.StatusCompleted
	id, err := e.ledger.Append(*entry)
	if err != nil {
		// the ledger write is part of the operation: without it the
		// adjustments must not stand
		e.compensate(ctx, adjustments)
		e.logger.Error("ledger write failed, adjustments rolled back",
			zap.String("user", entry.FromUser),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err))
		return errors.Wrapf(domain.ErrPersistence, "record %s entry: %v", entry.Kind, err)
	}
	entry.ID = id

	return nil
}

func (e *Engine) compensate(ctx context.Context, adjustments []domain.Adjustment) {
	inverse := make([]domain.Adjustment, len(adjustments))
	for i, adj := range adjustments {
		inverse[i] = domain.Adjustment{AccountID: adj.AccountID, Currency: adj.Currency, Delta: adj.Delta.Neg()}
	}
	if err := e.accounts.AtomicMultiAdjust(ctx, inverse); err != nil {
		e.logger.Error("compensation failed, balances may be inconsistent", zap.Error(err))
	}
}

func (e *Engine) recordFailure(entry *domain.LedgerEntry) {
	entry.Status = domain.StatusFailed
	id, err := e.ledger.Append(*entry)
	if err != nil {
		e.logger.Error("failed to record rejected operation",
			zap.String("user", entry.FromUser),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err))
		return
	}
	entry.ID = id
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(domain.ErrInvalidInput, "amount must be a positive number")
	}
	if amount.LessThan(domain.MinAmount) {
		return errors.Wrapf(domain.ErrInvalidInput, "amount must be at least %s", domain.MinAmount)
	}
	if amount.GreaterThan(domain.MaxAmount) {
		return errors.Wrapf(domain.ErrInvalidInput, "amount exceeds maximum limit of %s", domain.MaxAmount)
	}
	if !amount.Round(domain.Scale).Equal(amount) {
		return errors.Wrapf(domain.ErrInvalidInput, "amount precision exceeds %d decimal places", domain.Scale)
	}
	return nil
}
