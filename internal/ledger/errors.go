package ledger

import (
	"fmt"
	"math/big"

	"github.com/example/stableflow/internal/money"
)

// ValidationError reports malformed or semantically invalid caller input:
// too few entries, non-positive amounts, unknown accounts, currency
// mismatches. Maps to a client fault at the API layer.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ImbalanceError reports that a proposed transaction's debits and credits
// do not match for a currency. Unlike ValidationError this signals a bug
// in the caller's business logic, so it surfaces as a server-side fault.
type ImbalanceError struct {
	Currency money.Currency
	Debits   *big.Int
	Credits  *big.Int
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("ledger transaction does not balance for %s: debits=%s credits=%s",
		e.Currency, e.Debits, e.Credits)
}

// ConflictError reports an identity collision on creation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError reports an unknown account.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func notFoundErrorf(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}
