// Package ledger implements the double-entry accounting core: an
// append-only record of every movement of value, balanced per currency.
// All other parts of the platform reach the books exclusively through
// Service; nothing outside this package touches ledger rows.
package ledger

import (
	"math/big"
	"time"

	"github.com/example/stableflow/internal/money"
)

// AccountType determines an account's balance sign convention.
type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case Asset, Liability, Equity, Revenue, Expense:
		return true
	}
	return false
}

// Direction is the side of the books an entry lands on.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// Valid reports whether d is DEBIT or CREDIT.
func (d Direction) Valid() bool {
	return d == Debit || d == Credit
}

// Account is a ledger account. Immutable after creation; entries refer to
// it by id only.
type Account struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      AccountType    `json:"type"`
	Currency  money.Currency `json:"currency"`
	CreatedAt time.Time      `json:"created_at"`
}

// Transaction is a committed set of balanced entries. Append-only: once
// stored it is never updated or deleted.
type Transaction struct {
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Entries       []Entry   `json:"entries"`
}

// Entry is a single debit or credit against one account. Amounts are
// strictly positive integers in the currency's minor unit.
type Entry struct {
	ID            string         `json:"id"`
	TransactionID string         `json:"transaction_id"`
	AccountID     string         `json:"account_id"`
	Direction     Direction      `json:"direction"`
	Amount        *big.Int       `json:"amount"`
	Currency      money.Currency `json:"currency"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CreateAccountInput describes a new account for the registry.
type CreateAccountInput struct {
	ID       string
	Name     string
	Type     AccountType
	Currency money.Currency
}

// EntryInput is one proposed entry of a transaction to post.
type EntryInput struct {
	AccountID string
	Direction Direction
	Amount    *big.Int
	Currency  money.Currency
}

// TransactionInput is a proposed transaction. ReferenceType/ReferenceID
// optionally correlate the posting with an external domain object.
type TransactionInput struct {
	Description   string
	ReferenceType string
	ReferenceID   string
	Entries       []EntryInput
}

// Balance is an account's derived position.
type Balance struct {
	Amount   *big.Int       `json:"amount"`
	Currency money.Currency `json:"currency"`
}

// AccountBalance pairs an account with its computed balance for the
// overview listing.
type AccountBalance struct {
	Account
	Balance *big.Int `json:"balance"`
}

// CurrencyCheck holds one currency's side of the god check.
type CurrencyCheck struct {
	TotalDebits  *big.Int `json:"total_debits"`
	TotalCredits *big.Int `json:"total_credits"`
	Balanced     bool     `json:"balanced"`
}

// GodCheckResult is the full-ledger reconciliation verdict. Balanced is
// the conjunction over all currencies present; a currency with no entries
// is vacuously balanced and absent from Currencies.
type GodCheckResult struct {
	Balanced   bool                             `json:"balanced"`
	Currencies map[money.Currency]CurrencyCheck `json:"currencies"`
}
