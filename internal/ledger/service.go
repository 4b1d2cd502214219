package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/example/stableflow/internal/events"
	"github.com/example/stableflow/internal/money"
)

// Service is the transactional interface the rest of the platform calls.
// It validates, delegates durability to the Store, and never retries:
// transient storage failures propagate verbatim so the caller can decide.
type Service struct {
	store     Store
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates a ledger service. publisher and logger may be nil.
func NewService(store Store, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, logger: logger}
}

// CreateAccount provisions a new ledger account. Accounts are immutable
// after creation; there is no update or delete.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (*Account, error) {
	if input.ID == "" {
		return nil, validationErrorf("account id is required")
	}
	if input.Name == "" {
		return nil, validationErrorf("account name is required")
	}
	if !input.Type.Valid() {
		return nil, validationErrorf("invalid account type %q", input.Type)
	}
	if !input.Currency.Valid() {
		return nil, validationErrorf("unsupported currency %q", input.Currency)
	}

	account := Account{
		ID:        input.ID,
		Name:      input.Name,
		Type:      input.Type,
		Currency:  input.Currency,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("ledger_account_created",
		"account_id", account.ID,
		"type", string(account.Type),
		"currency", string(account.Currency),
	)
	return &account, nil
}

// GetAccount returns the account or a *NotFoundError.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, validationErrorf("account id is required")
	}
	return s.store.GetAccount(ctx, id)
}

// ListAccounts returns every ledger account, without balances.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

// PostTransaction validates and atomically commits a multi-entry
// transaction. All validation runs before any write; the commit is
// all-or-nothing, so no partial transaction is ever observable.
func (s *Service) PostTransaction(ctx context.Context, input TransactionInput) (*Transaction, error) {
	if len(input.Entries) < 2 {
		return nil, validationErrorf("transaction must have at least 2 entries")
	}

	for _, e := range input.Entries {
		if !e.Direction.Valid() {
			return nil, validationErrorf("invalid entry direction %q", e.Direction)
		}
		if !e.Currency.Valid() {
			return nil, validationErrorf("unsupported currency %q", e.Currency)
		}
		if e.Amount == nil || e.Amount.Sign() <= 0 {
			return nil, validationErrorf("all entry amounts must be greater than 0")
		}
	}

	// Per-currency conservation: within the proposal, debits must equal
	// credits for every currency present.
	currencyTotals := make(map[money.Currency]*EntryTotals)
	for _, e := range input.Entries {
		t, ok := currencyTotals[e.Currency]
		if !ok {
			t = &EntryTotals{Debits: new(big.Int), Credits: new(big.Int)}
			currencyTotals[e.Currency] = t
		}
		if e.Direction == Debit {
			t.Debits.Add(t.Debits, e.Amount)
		} else {
			t.Credits.Add(t.Credits, e.Amount)
		}
	}
	for currency, t := range currencyTotals {
		if t.Debits.Cmp(t.Credits) != 0 {
			return nil, &ImbalanceError{Currency: currency, Debits: t.Debits, Credits: t.Credits}
		}
	}

	// Resolve the distinct referenced accounts in one batch read and check
	// every entry's currency against its account.
	seen := make(map[string]bool, len(input.Entries))
	ids := make([]string, 0, len(input.Entries))
	for _, e := range input.Entries {
		if e.AccountID == "" {
			return nil, validationErrorf("entry account id is required")
		}
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}
	accounts, err := s.store.GetAccounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve accounts: %w", err)
	}
	for _, e := range input.Entries {
		account, ok := accounts[e.AccountID]
		if !ok {
			return nil, validationErrorf("ledger account not found: %s", e.AccountID)
		}
		if account.Currency != e.Currency {
			return nil, validationErrorf("currency mismatch: account %s uses %s, entry uses %s",
				e.AccountID, account.Currency, e.Currency)
		}
	}

	now := time.Now().UTC()
	txn := &Transaction{
		ID:            NewTransactionID(),
		Description:   input.Description,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		CreatedAt:     now,
		Entries:       make([]Entry, len(input.Entries)),
	}
	for i, e := range input.Entries {
		txn.Entries[i] = Entry{
			ID:            NewEntryID(),
			TransactionID: txn.ID,
			AccountID:     e.AccountID,
			Direction:     e.Direction,
			Amount:        new(big.Int).Set(e.Amount),
			Currency:      e.Currency,
			CreatedAt:     now,
		}
	}

	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info("ledger_transaction_posted",
		"transaction_id", txn.ID,
		"entries", len(txn.Entries),
		"reference_type", txn.ReferenceType,
		"reference_id", txn.ReferenceID,
	)
	s.publishPosted(ctx, txn)
	return txn, nil
}

// GetBalance derives the account's current balance from its entry history,
// honoring the account-type sign convention: asset and expense accounts
// carry debits minus credits, the rest credits minus debits.
func (s *Service) GetBalance(ctx context.Context, accountID string) (*Balance, error) {
	if accountID == "" {
		return nil, validationErrorf("account id is required")
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	totals, err := s.store.AccountEntryTotals(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum entries for %s: %w", accountID, err)
	}

	amount := new(big.Int)
	switch account.Type {
	case Asset, Expense:
		amount.Sub(totals.Debits, totals.Credits)
	default:
		amount.Sub(totals.Credits, totals.Debits)
	}
	return &Balance{Amount: amount, Currency: account.Currency}, nil
}

// GetAllAccounts lists every account with its computed balance. Balances
// are recomputed per call; there is no cache to invalidate.
func (s *Service) GetAllAccounts(ctx context.Context) ([]AccountBalance, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		balance, err := s.GetBalance(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, AccountBalance{Account: account, Balance: balance.Amount})
	}
	return result, nil
}

// GetTransactionsByReference returns all transactions correlated with the
// given external object, entries included. An empty result is not an error.
func (s *Service) GetTransactionsByReference(ctx context.Context, referenceType, referenceID string) ([]Transaction, error) {
	if referenceType == "" || referenceID == "" {
		return nil, validationErrorf("reference type and reference id are required")
	}
	return s.store.TransactionsByReference(ctx, referenceType, referenceID)
}

// GodCheck verifies that, for every currency in use, total debits equal
// total credits across the entire ledger. Read-only and safe to run
// concurrently with live posting; it sees whatever committed state is
// visible at read time.
func (s *Service) GodCheck(ctx context.Context) (*GodCheckResult, error) {
	totals, err := s.store.CurrencyEntryTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ledger entries: %w", err)
	}

	result := &GodCheckResult{
		Balanced:   true,
		Currencies: make(map[money.Currency]CurrencyCheck, len(totals)),
	}
	for currency, t := range totals {
		balanced := t.Debits.Cmp(t.Credits) == 0
		result.Currencies[currency] = CurrencyCheck{
			TotalDebits:  t.Debits,
			TotalCredits: t.Credits,
			Balanced:     balanced,
		}
		if !balanced {
			result.Balanced = false
		}
	}
	return result, nil
}

// publishPosted emits the TransactionPosted event. Publishing is
// best-effort: the books are already durable, so a broker failure is
// logged and swallowed rather than surfaced to the caller.
func (s *Service) publishPosted(ctx context.Context, txn *Transaction) {
	event := events.TransactionPosted{
		TransactionID: txn.ID,
		Description:   txn.Description,
		ReferenceType: txn.ReferenceType,
		ReferenceID:   txn.ReferenceID,
		OccurredAt:    txn.CreatedAt,
		Entries:       make([]events.PostedEntry, len(txn.Entries)),
	}
	for i, e := range txn.Entries {
		event.Entries[i] = events.PostedEntry{
			EntryID:   e.ID,
			AccountID: e.AccountID,
			Direction: string(e.Direction),
			Amount:    e.Amount.String(),
			Currency:  string(e.Currency),
		}
	}
	if err := s.publisher.Publish(ctx, events.TopicTransactionPosted, event); err != nil {
		s.logger.Warn("transaction_posted_event_failed",
			"transaction_id", txn.ID,
			"error", err.Error(),
		)
	}
}
