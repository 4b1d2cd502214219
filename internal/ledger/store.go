package ledger

import (
	"context"
	"math/big"

	"github.com/example/stableflow/internal/money"
)

// EntryTotals is the debit/credit aggregate the stores return for balance
// and god-check queries.
type EntryTotals struct {
	Debits  *big.Int
	Credits *big.Int
}

// Store is the durable collaborator the ledger core writes through. Both
// implementations delegate atomicity and row immutability to the database:
// InsertTransaction runs inside a single storage transaction, and BEFORE
// UPDATE/DELETE triggers on the transaction and entry tables reject any
// rewrite of history regardless of what the application does.
type Store interface {
	// CreateAccount inserts a new account row. A duplicate id yields a
	// *ConflictError.
	CreateAccount(ctx context.Context, account Account) error

	// GetAccount returns the account or a *NotFoundError.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// GetAccounts resolves a batch of ids. Missing ids are simply absent
	// from the result; the caller decides whether that is an error.
	GetAccounts(ctx context.Context, ids []string) (map[string]Account, error)

	// ListAccounts returns every account, ordered by id.
	ListAccounts(ctx context.Context) ([]Account, error)

	// InsertTransaction persists the transaction row and all entry rows as
	// one atomic unit. Either all rows become visible or none do.
	InsertTransaction(ctx context.Context, txn *Transaction) error

	// AccountEntryTotals sums the account's debit and credit entries.
	AccountEntryTotals(ctx context.Context, accountID string) (EntryTotals, error)

	// CurrencyEntryTotals sums debits and credits per currency across the
	// whole ledger. Currencies with no entries are absent.
	CurrencyEntryTotals(ctx context.Context) (map[money.Currency]EntryTotals, error)

	// TransactionsByReference returns the committed transactions carrying
	// the given external reference, entries included, oldest first.
	TransactionsByReference(ctx context.Context, referenceType, referenceID string) ([]Transaction, error)
}
