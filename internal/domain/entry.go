package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind operation kind recorded in the ledger.
type EntryKind string

const (
	KindExchange EntryKind = "exchange"
	KindTransfer EntryKind = "transfer"
	KindDeposit  EntryKind = "deposit"
)

// ParseEntryKind validates a ledger kind filter value.
func ParseEntryKind(s string) (EntryKind, error) {
	switch k := EntryKind(s); k {
	case KindExchange, KindTransfer, KindDeposit:
		return k, nil
	}
	return "", fmt.Errorf("unknown ledger entry kind %q", s)
}

// EntryStatus terminal state of an operation.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

// LedgerEntry is the immutable record of one completed or failed operation.
// Once appended with a completed or failed status it never changes.
type LedgerEntry struct {
	ID   string    `json:"id"`
	Kind EntryKind `json:"kind"`
	// FromUser initiating account id.
	FromUser string `json:"from_user"`
	// ToUser recipient account id. Set for transfers only.
	ToUser       string          `json:"to_user,omitempty"`
	FromCurrency Currency        `json:"from_currency"`
	ToCurrency   Currency        `json:"to_currency"`
	Amount       decimal.Decimal `json:"amount"`
	// Rate resolved market rate for exchanges, 1 otherwise.
	Rate      decimal.Decimal `json:"rate"`
	Status    EntryStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Participated reports whether the account initiated or received the entry.
func (e *LedgerEntry) Participated(accountID string) bool {
	return e.FromUser == accountID || e.ToUser == accountID
}

// LedgerRecord bundles an entry with its append index.
type LedgerRecord struct {
	Index uint64
	Entry LedgerEntry
}
