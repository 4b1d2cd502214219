package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/example/stableflow/internal/money"
	"github.com/example/stableflow/migrations"
)

// SQLiteStore is the development and test Store. It runs the same
// append-only schema as production, triggers included, so the storage
// invariants are exercised without a running postgres. Amounts are stored
// as decimal strings and summed in Go to stay in exact integer math.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and applies the
// embedded schema. dsn may be a file path or a file: URI; in-memory
// databases ("file:x?mode=memory&cache=shared") are supported for tests.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+"_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases alive and sidesteps
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	source, err := iofs.New(migrations.SQLite, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// DB exposes the raw handle for tests probing storage-level behavior.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_accounts (id, name, type, currency, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, account.ID, account.Name, string(account.Type), string(account.Currency),
		account.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return &ConflictError{Message: fmt.Sprintf("ledger account already exists: %s", account.ID)}
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, name, type, currency, created_at
		FROM ledger_accounts
		WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErrorf("ledger account not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var account Account
	var createdAt string
	if err := row.Scan(&account.ID, &account.Name, &account.Type, &account.Currency, &createdAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account timestamp: %w", err)
	}
	account.CreatedAt = ts
	return &account, nil
}

func (s *SQLiteStore) GetAccounts(ctx context.Context, ids []string) (map[string]Account, error) {
	if len(ids) == 0 {
		return map[string]Account{}, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, currency, created_at
		FROM ledger_accounts
		WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[string]Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts[account.ID] = *account
	}
	return accounts, rows.Err()
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, currency, created_at
		FROM ledger_accounts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *SQLiteStore) InsertTransaction(ctx context.Context, txn *Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, description, reference_type, reference_id, created_at)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
	`, txn.ID, txn.Description, txn.ReferenceType, txn.ReferenceID,
		txn.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, e := range txn.Entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, transaction_id, account_id, direction, amount, currency, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.TransactionID, e.AccountID, string(e.Direction), e.Amount.String(),
			string(e.Currency), e.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AccountEntryTotals scans the account's entries and sums them in Go:
// SQLite's SUM would coerce the text amounts to floats.
func (s *SQLiteStore) AccountEntryTotals(ctx context.Context, accountID string) (EntryTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT direction, amount
		FROM ledger_entries
		WHERE account_id = ?
	`, accountID)
	if err != nil {
		return EntryTotals{}, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	totals := EntryTotals{Debits: new(big.Int), Credits: new(big.Int)}
	for rows.Next() {
		var direction, amount string
		if err := rows.Scan(&direction, &amount); err != nil {
			return EntryTotals{}, fmt.Errorf("failed to scan entry: %w", err)
		}
		n, err := parseAmount(amount)
		if err != nil {
			return EntryTotals{}, err
		}
		if Direction(direction) == Debit {
			totals.Debits.Add(totals.Debits, n)
		} else {
			totals.Credits.Add(totals.Credits, n)
		}
	}
	return totals, rows.Err()
}

func (s *SQLiteStore) CurrencyEntryTotals(ctx context.Context) (map[money.Currency]EntryTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT currency, direction, amount
		FROM ledger_entries
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	totals := make(map[money.Currency]EntryTotals)
	for rows.Next() {
		var currency, direction, amount string
		if err := rows.Scan(&currency, &direction, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		n, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		t, ok := totals[money.Currency(currency)]
		if !ok {
			t = EntryTotals{Debits: new(big.Int), Credits: new(big.Int)}
			totals[money.Currency(currency)] = t
		}
		if Direction(direction) == Debit {
			t.Debits.Add(t.Debits, n)
		} else {
			t.Credits.Add(t.Credits, n)
		}
	}
	return totals, rows.Err()
}

func (s *SQLiteStore) TransactionsByReference(ctx context.Context, referenceType, referenceID string) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, COALESCE(reference_type, ''), COALESCE(reference_id, ''), created_at
		FROM ledger_transactions
		WHERE reference_type = ? AND reference_id = ?
		ORDER BY id
	`, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var txn Transaction
		var createdAt string
		if err := rows.Scan(&txn.ID, &txn.Description, &txn.ReferenceType, &txn.ReferenceID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction timestamp: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return []Transaction{}, nil
	}

	for i := range txns {
		entries, err := s.entriesForTransaction(ctx, txns[i].ID)
		if err != nil {
			return nil, err
		}
		txns[i].Entries = entries
	}
	return txns, nil
}

func (s *SQLiteStore) entriesForTransaction(ctx context.Context, txnID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, account_id, direction, amount, currency, created_at
		FROM ledger_entries
		WHERE transaction_id = ?
		ORDER BY id
	`, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var amount, createdAt string
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Direction, &amount, &e.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Amount, err = parseAmount(amount)
		if err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse entry timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
