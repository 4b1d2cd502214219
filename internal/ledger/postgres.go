package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/stableflow/internal/money"
	"github.com/example/stableflow/migrations"
)

const pgUniqueViolation = "23505"

// PostgresStore is the production Store, backed by a pgx pool. Amounts
// live in NUMERIC(78,0) columns and cross the wire as decimal strings so
// they never pass through a float.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// MigratePostgres applies the embedded ledger schema to the database at
// databaseURL (a postgres:// URL).
func MigratePostgres(databaseURL string) error {
	source, err := iofs.New(migrations.Postgres, "postgres")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "pgx5://"+trimScheme(databaseURL))
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func trimScheme(url string) string {
	for _, scheme := range []string{"postgres://", "postgresql://", "pgx5://"} {
		if len(url) > len(scheme) && url[:len(scheme)] == scheme {
			return url[len(scheme):]
		}
	}
	return url
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_accounts (id, name, type, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, account.ID, account.Name, string(account.Type), string(account.Currency), account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return &ConflictError{Message: fmt.Sprintf("ledger account already exists: %s", account.ID)}
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account Account
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, type, currency, created_at
		FROM ledger_accounts
		WHERE id = $1
	`, id).Scan(&account.ID, &account.Name, &account.Type, &account.Currency, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErrorf("ledger account not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (s *PostgresStore) GetAccounts(ctx context.Context, ids []string) (map[string]Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type, currency, created_at
		FROM ledger_accounts
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[string]Account, len(ids))
	for rows.Next() {
		var account Account
		if err := rows.Scan(&account.ID, &account.Name, &account.Type, &account.Currency, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts[account.ID] = account
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
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
		var account Account
		if err := rows.Scan(&account.ID, &account.Name, &account.Type, &account.Currency, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// InsertTransaction writes the transaction row and every entry row inside
// one database transaction. Concurrent postings to disjoint accounts do
// not block each other; the database serializes writes that contend.
func (s *PostgresStore) InsertTransaction(ctx context.Context, txn *Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_transactions (id, description, reference_type, reference_id, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
	`, txn.ID, txn.Description, txn.ReferenceType, txn.ReferenceID, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, e := range txn.Entries {
		_, err = tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, transaction_id, account_id, direction, amount, currency, created_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		`, e.ID, e.TransactionID, e.AccountID, string(e.Direction), e.Amount.String(), string(e.Currency), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) AccountEntryTotals(ctx context.Context, accountID string) (EntryTotals, error) {
	var debits, credits string
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN direction = 'DEBIT' THEN amount ELSE 0 END), 0)::text,
			COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount ELSE 0 END), 0)::text
		FROM ledger_entries
		WHERE account_id = $1
	`, accountID).Scan(&debits, &credits)
	if err != nil {
		return EntryTotals{}, fmt.Errorf("failed to sum entries: %w", err)
	}
	return parseTotals(debits, credits)
}

func (s *PostgresStore) CurrencyEntryTotals(ctx context.Context) (map[money.Currency]EntryTotals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			currency,
			SUM(CASE WHEN direction = 'DEBIT' THEN amount ELSE 0 END)::text,
			SUM(CASE WHEN direction = 'CREDIT' THEN amount ELSE 0 END)::text
		FROM ledger_entries
		GROUP BY currency
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate entries: %w", err)
	}
	defer rows.Close()

	totals := make(map[money.Currency]EntryTotals)
	for rows.Next() {
		var currency, debits, credits string
		if err := rows.Scan(&currency, &debits, &credits); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		t, err := parseTotals(debits, credits)
		if err != nil {
			return nil, err
		}
		totals[money.Currency(currency)] = t
	}
	return totals, rows.Err()
}

func (s *PostgresStore) TransactionsByReference(ctx context.Context, referenceType, referenceID string) ([]Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, description, COALESCE(reference_type, ''), COALESCE(reference_id, ''), created_at
		FROM ledger_transactions
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY id
	`, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	var txnIDs []string
	index := make(map[string]int)
	for rows.Next() {
		var txn Transaction
		if err := rows.Scan(&txn.ID, &txn.Description, &txn.ReferenceType, &txn.ReferenceID, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		index[txn.ID] = len(txns)
		txnIDs = append(txnIDs, txn.ID)
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return []Transaction{}, nil
	}

	entryRows, err := s.pool.Query(ctx, `
		SELECT id, transaction_id, account_id, direction, amount::text, currency, created_at
		FROM ledger_entries
		WHERE transaction_id = ANY($1)
		ORDER BY id
	`, txnIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var e Entry
		var amount string
		if err := entryRows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Direction, &amount, &e.Currency, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Amount, err = parseAmount(amount)
		if err != nil {
			return nil, err
		}
		i := index[e.TransactionID]
		txns[i].Entries = append(txns[i].Entries, e)
	}
	return txns, entryRows.Err()
}

func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("stored amount %q is not an integer", s)
	}
	return n, nil
}

func parseTotals(debits, credits string) (EntryTotals, error) {
	d, err := parseAmount(debits)
	if err != nil {
		return EntryTotals{}, err
	}
	c, err := parseAmount(credits)
	if err != nil {
		return EntryTotals{}, err
	}
	return EntryTotals{Debits: d, Credits: c}, nil
}
