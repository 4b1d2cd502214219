package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/stableflow/internal/money"
)

// seedOnePosting writes one balanced transaction through the store so the
// mutation tests have rows to attack.
func seedOnePosting(t *testing.T, store *SQLiteStore) *Transaction {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"imm:a", "imm:b"} {
		accountType := Asset
		if id == "imm:b" {
			accountType = Liability
		}
		require.NoError(t, store.CreateAccount(ctx, Account{
			ID: id, Name: id, Type: accountType, Currency: money.USD, CreatedAt: now,
		}))
	}

	txn := &Transaction{
		ID:          NewTransactionID(),
		Description: "immutable posting",
		CreatedAt:   now,
	}
	txn.Entries = []Entry{
		{ID: NewEntryID(), TransactionID: txn.ID, AccountID: "imm:a", Direction: Debit, Amount: amt(100), Currency: money.USD, CreatedAt: now},
		{ID: NewEntryID(), TransactionID: txn.ID, AccountID: "imm:b", Direction: Credit, Amount: amt(100), Currency: money.USD, CreatedAt: now},
	}
	require.NoError(t, store.InsertTransaction(ctx, txn))
	return txn
}

func TestTransactionsAreImmutable(t *testing.T) {
	store := newTestStore(t)
	txn := seedOnePosting(t, store)
	db := store.DB()

	_, err := db.Exec(`UPDATE ledger_transactions SET description = 'tampered' WHERE id = ?`, txn.ID)
	assert.Error(t, err, "UPDATE on ledger_transactions must be rejected")

	_, err = db.Exec(`DELETE FROM ledger_transactions WHERE id = ?`, txn.ID)
	assert.Error(t, err, "DELETE on ledger_transactions must be rejected")

	var description string
	require.NoError(t, db.QueryRow(`SELECT description FROM ledger_transactions WHERE id = ?`, txn.ID).Scan(&description))
	assert.Equal(t, "immutable posting", description)
}

func TestEntriesAreImmutable(t *testing.T) {
	store := newTestStore(t)
	txn := seedOnePosting(t, store)
	db := store.DB()
	entryID := txn.Entries[0].ID

	_, err := db.Exec(`UPDATE ledger_entries SET amount = '999999' WHERE id = ?`, entryID)
	assert.Error(t, err, "UPDATE on ledger_entries must be rejected")

	_, err = db.Exec(`DELETE FROM ledger_entries WHERE id = ?`, entryID)
	assert.Error(t, err, "DELETE on ledger_entries must be rejected")

	var amount string
	require.NoError(t, db.QueryRow(`SELECT amount FROM ledger_entries WHERE id = ?`, entryID).Scan(&amount))
	assert.Equal(t, "100", amount)
}

func TestSchemaRejectsNonPositiveAmounts(t *testing.T) {
	store := newTestStore(t)
	txn := seedOnePosting(t, store)
	db := store.DB()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, bad := range []string{"0", "-5", "01", "1.5", "abc"} {
		_, err := db.Exec(`
			INSERT INTO ledger_entries (id, transaction_id, account_id, direction, amount, currency, created_at)
			VALUES (?, ?, 'imm:a', 'DEBIT', ?, 'USD', ?)
		`, NewEntryID(), txn.ID, bad, now)
		assert.Error(t, err, "amount %q must violate the schema check", bad)
	}
}

func TestSchemaRejectsOrphanEntries(t *testing.T) {
	store := newTestStore(t)
	seedOnePosting(t, store)
	db := store.DB()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := db.Exec(`
		INSERT INTO ledger_entries (id, transaction_id, account_id, direction, amount, currency, created_at)
		VALUES (?, 'txn_missing', 'imm:a', 'DEBIT', '100', 'USD', ?)
	`, NewEntryID(), now)
	assert.Error(t, err, "entry referencing an unknown transaction must be rejected")

	_, err = db.Exec(`
		INSERT INTO ledger_entries (id, transaction_id, account_id, direction, amount, currency, created_at)
		VALUES (?, 'txn_missing', 'lac_missing', 'DEBIT', '100', 'USD', ?)
	`, NewEntryID(), now)
	assert.Error(t, err, "entry referencing an unknown account must be rejected")
}

func TestCreateAccountConflictAtStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := Account{ID: "dup", Name: "dup", Type: Asset, Currency: money.USD, CreatedAt: time.Now().UTC()}

	require.NoError(t, store.CreateAccount(ctx, account))
	err := store.CreateAccount(ctx, account)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestInsertTransactionIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.CreateAccount(ctx, Account{
		ID: "atomic:a", Name: "a", Type: Asset, Currency: money.USD, CreatedAt: now,
	}))

	// Second entry references a missing account, so the foreign key fails
	// mid-batch. The transaction row must roll back with it.
	txn := &Transaction{ID: NewTransactionID(), Description: "partial", CreatedAt: now}
	txn.Entries = []Entry{
		{ID: NewEntryID(), TransactionID: txn.ID, AccountID: "atomic:a", Direction: Debit, Amount: amt(50), Currency: money.USD, CreatedAt: now},
		{ID: NewEntryID(), TransactionID: txn.ID, AccountID: "lac_missing", Direction: Credit, Amount: amt(50), Currency: money.USD, CreatedAt: now},
	}
	require.Error(t, store.InsertTransaction(ctx, txn))

	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM ledger_transactions`).Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM ledger_entries`).Scan(&count))
	assert.Zero(t, count)
}
