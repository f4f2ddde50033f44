package accounts

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/internal/domain"
)

// PgStore keeps balances in PostgreSQL. Atomicity comes from running every
// batch in one transaction with conditional row updates: the non-negative
// guard sits in the UPDATE predicate, so a would-be overdraft simply matches
// no row and the transaction rolls back. Rows are updated in ascending
// (account_id, currency) order to keep lock acquisition deterministic.
//
// Expected schema:
//
//	CREATE TABLE accounts (
//	    id     TEXT PRIMARY KEY,
//	    handle TEXT UNIQUE NOT NULL
//	);
//	CREATE TABLE balances (
//	    account_id TEXT NOT NULL REFERENCES accounts(id),
//	    currency   TEXT NOT NULL,
//	    amount     NUMERIC(24,4) NOT NULL DEFAULT 0 CHECK (amount >= 0),
//	    PRIMARY KEY (account_id, currency)
//	);
//
// Registration seeds a zero balance row per supported currency, so an
// unmatched UPDATE on an existing account always means an overdraft.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Adjust(ctx context.Context, accountID string, currency domain.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	var next decimal.Decimal
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		next, err = s.adjustRow(ctx, tx, domain.Adjustment{AccountID: accountID, Currency: currency, Delta: delta})
		return err
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return next, nil
}

func (s *PgStore) AtomicMultiAdjust(ctx context.Context, adjustments []domain.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	ordered := make([]domain.Adjustment, len(adjustments))
	copy(ordered, adjustments)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].AccountID != ordered[j].AccountID {
			return ordered[i].AccountID < ordered[j].AccountID
		}
		return ordered[i].Currency < ordered[j].Currency
	})

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, adj := range ordered {
			if _, err := s.adjustRow(ctx, tx, adj); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PgStore) adjustRow(ctx context.Context, tx pgx.Tx, adj domain.Adjustment) (decimal.Decimal, error) {
	// amounts travel as text: pgx does not know the decimal type without a
	// codec, and text round-trips NUMERIC exactly
	const query = `
		UPDATE balances
		SET amount = amount + $3::numeric
		WHERE account_id = $1 AND currency = $2 AND amount + $3::numeric >= 0
		RETURNING amount::text
	`

	var raw string
	err := tx.QueryRow(ctx, query, adj.AccountID, string(adj.Currency), adj.Delta.String()).Scan(&raw)
	if err == nil {
		next, parseErr := decimal.NewFromString(raw)
		if parseErr != nil {
			return decimal.Decimal{}, errors.Wrapf(domain.ErrPersistence, "parse stored amount %q: %v", raw, parseErr)
		}
		return next, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, errors.Wrapf(domain.ErrPersistence, "adjust %s %s: %v", adj.AccountID, adj.Currency, err)
	}

	// no row matched: tell an unknown account apart from an overdraft
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, adj.AccountID).Scan(&exists); err != nil {
		return decimal.Decimal{}, errors.Wrapf(domain.ErrPersistence, "check account %s: %v", adj.AccountID, err)
	}
	if !exists {
		return decimal.Decimal{}, errors.Wrapf(domain.ErrAccountNotFound, "account %s", adj.AccountID)
	}
	return decimal.Decimal{}, errors.Wrapf(domain.ErrInsufficientFunds, "account %s lacks %s %s",
		adj.AccountID, adj.Delta.Neg(), adj.Currency)
}

func (s *PgStore) Balances(ctx context.Context, accountID string) (map[domain.Currency]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, `SELECT currency, amount::text FROM balances WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrPersistence, "query balances for %s: %v", accountID, err)
	}
	defer rows.Close()

	balances := make(map[domain.Currency]decimal.Decimal, len(domain.SupportedCurrencies()))
	for _, c := range domain.SupportedCurrencies() {
		balances[c] = decimal.Zero
	}

	found := false
	for rows.Next() {
		var currency, raw string
		if err := rows.Scan(&currency, &raw); err != nil {
			return nil, errors.Wrapf(domain.ErrPersistence, "scan balance row: %v", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrPersistence, "parse stored amount %q: %v", raw, err)
		}
		balances[domain.Currency(currency)] = amount
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(domain.ErrPersistence, "iterate balances: %v", err)
	}
	if !found {
		return nil, errors.Wrapf(domain.ErrAccountNotFound, "account %s", accountID)
	}

	return balances, nil
}

func (s *PgStore) ResolveHandle(ctx context.Context, handle string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM accounts WHERE handle = $1`, handle).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errors.Wrapf(domain.ErrAccountNotFound, "handle %s", handle)
	}
	if err != nil {
		return "", errors.Wrapf(domain.ErrPersistence, "resolve handle %s: %v", handle, err)
	}
	return id, nil
}
