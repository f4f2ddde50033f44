package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tonex/tonex/internal/domain"
)

func newTestStore(t *testing.T) *WALStore {
	t.Helper()
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func depositEntry(user string, at time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{
		Kind:         domain.KindDeposit,
		FromUser:     user,
		ToUser:       user,
		FromCurrency: domain.USDT,
		ToCurrency:   domain.USDT,
		Amount:       decimal.NewFromInt(50),
		Rate:         decimal.NewFromInt(1),
		Status:       domain.StatusCompleted,
		CreatedAt:    at,
	}
}

func TestAppendAssignsID(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Append(depositEntry("alice", time.Time{}))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := store.FindByParticipant("alice", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id, entries[0].ID)
	require.False(t, entries[0].CreatedAt.IsZero())
}

func TestFindByParticipantNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := store.Append(depositEntry("alice", base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	entries, err := store.FindByParticipant("alice", "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, base.Add(2*time.Second), entries[0].CreatedAt)
	require.Equal(t, base.Add(time.Second), entries[1].CreatedAt)
	require.Equal(t, base, entries[2].CreatedAt)
}

func TestFindByParticipantFiltersKindAndCounterparty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Append(depositEntry("alice", time.Now().UTC()))
	require.NoError(t, err)

	_, err = store.Append(domain.LedgerEntry{
		Kind:         domain.KindTransfer,
		FromUser:     "bob",
		ToUser:       "alice",
		FromCurrency: domain.TON,
		ToCurrency:   domain.TON,
		Amount:       decimal.NewFromInt(2),
		Rate:         decimal.NewFromInt(1),
		Status:       domain.StatusCompleted,
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)

	// alice sees the incoming transfer even though bob initiated it
	entries, err := store.FindByParticipant("alice", domain.KindTransfer)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "bob", entries[0].FromUser)

	entries, err = store.FindByParticipant("carol", "")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRecoveryAfterReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)

	id, err := store.Append(depositEntry("alice", time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.FindByParticipant("alice", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id, entries[0].ID)
}
