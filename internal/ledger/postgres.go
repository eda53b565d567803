package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresLedger keeps balances and entries in PostgreSQL. Balance changes are
// single conditional UPDATE statements so concurrent debits cannot overdraw.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (code) VALUES ($1) ON CONFLICT (code) DO NOTHING`, code)
	return err
}

// Balance returns the current balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	var balance int64
	if err := l.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE code = $1`, code).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Debit subtracts amount only if the balance covers it.
func (l *PostgresLedger) Debit(ctx context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	const query = `
        UPDATE accounts SET balance = balance - $2, updated_at = now()
        WHERE code = $1 AND balance >= $2
        RETURNING balance`
	var balance int64
	err := l.db.QueryRow(ctx, query, code, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// No row updated: either the account is missing or the balance is short.
	current, balErr := l.Balance(ctx, code)
	if balErr != nil {
		return 0, balErr
	}
	return current, ErrInsufficientFunds
}

// Credit adds amount to the account balance.
func (l *PostgresLedger) Credit(ctx context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := l.db.QueryRow(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = now()
        WHERE code = $1 RETURNING balance`, code, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// AppendEntry inserts a new entry; an existing reference yields ErrDuplicateEntry.
func (l *PostgresLedger) AppendEntry(ctx context.Context, entry Entry) (Entry, error) {
	if entry.Amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}
	now := time.Now().UTC()
	entry.CreatedAt, entry.UpdatedAt = now, now

	_, err := l.db.Exec(ctx, `INSERT INTO ledger_entries
        (reference, kind, status, sender_id, recipient_id, target, amount, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.Reference, string(entry.Kind), string(entry.Status), entry.SenderID, entry.RecipientID,
		entry.Target, entry.Amount, entry.Metadata, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, getErr := l.Entry(ctx, entry.Reference)
			if getErr != nil {
				return Entry{}, getErr
			}
			return existing, ErrDuplicateEntry
		}
		return Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}

// UpdateEntryStatus finalizes a pending entry.
func (l *PostgresLedger) UpdateEntryStatus(ctx context.Context, reference string, status Status) error {
	if !validTransition(StatusPending, status) {
		return ErrInvalidTransition
	}
	cmd, err := l.db.Exec(ctx, `UPDATE ledger_entries SET status = $2, updated_at = now()
        WHERE reference = $1 AND status = $3`, reference, string(status), string(StatusPending))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	if _, err := l.Entry(ctx, reference); err != nil {
		return err
	}
	return ErrInvalidTransition
}

const entryColumns = `reference, kind, status, sender_id, recipient_id, target, amount, metadata, created_at, updated_at`

// Entry loads a single entry by reference.
func (l *PostgresLedger) Entry(ctx context.Context, reference string) (Entry, error) {
	row := l.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE reference = $1`, reference)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return entry, err
}

// Entries returns the most recent entries where ownerID is sender or recipient.
func (l *PostgresLedger) Entries(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
        WHERE sender_id = $1 OR recipient_id = $1
        ORDER BY created_at DESC LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e            Entry
		kind, status string
	)
	if err := row.Scan(&e.Reference, &kind, &status, &e.SenderID, &e.RecipientID, &e.Target,
		&e.Amount, &e.Metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.Kind, e.Status = Kind(kind), Status(status)
	e.CreatedAt, e.UpdatedAt = e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return e, nil
}
