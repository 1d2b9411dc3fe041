package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when the caller supplies no currency.
const DefaultCurrency = "PKR"

// FinancialLedger is the append-only double-entry journal. Every posting is
// a balanced debit/credit pair; corrections are reversing pairs, never
// updates or deletes.
type FinancialLedger struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewFinancialLedger(pool *pgxpool.Pool, log zerolog.Logger) *FinancialLedger {
	return &FinancialLedger{pool: pool, log: log}
}

// CreateDoubleEntryTx inserts one balanced debit/credit pair inside the
// caller's transaction. Amount must be positive and the transaction date must
// not be in the future. BaseAmount is derived as amount times exchange rate
// so multi-currency entries aggregate in one base currency.
func (l *FinancialLedger) CreateDoubleEntryTx(ctx context.Context, tx pgx.Tx,
	debit, credit AccountRef, amount decimal.Decimal, currency string, exchangeRate decimal.Decimal,
	description, referenceType string, referenceID int, transactionDate time.Time, actor string) error {

	if !amount.IsPositive() {
		return validationErr(ErrInvalidAmount, "ledger amount %s must be positive", amount.String())
	}
	if transactionDate.After(time.Now()) {
		return validationErr(ErrFutureTransactionDate, "transaction date %s", transactionDate.Format("2006-01-02"))
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if !exchangeRate.IsPositive() {
		exchangeRate = decimal.NewFromInt(1)
	}
	baseAmount := amount.Mul(exchangeRate).Round(2)

	if err := l.insertEntry(ctx, tx, debit, Debit, amount, currency, exchangeRate, baseAmount,
		description, referenceType, referenceID, false, transactionDate, actor); err != nil {
		return err
	}
	if err := l.insertEntry(ctx, tx, credit, Credit, amount, currency, exchangeRate, baseAmount,
		description, referenceType, referenceID, false, transactionDate, actor); err != nil {
		return err
	}
	return nil
}

// ReverseTx appends an opposite entry for every entry recorded under the
// reference: debits become credits and vice versa, same amounts, flagged as
// reversals. A second reverse fails with AlreadyReversed.
func (l *FinancialLedger) ReverseTx(ctx context.Context, tx pgx.Tx, referenceType string, referenceID int, reason, actor string) error {
	var reversed bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM ledger_entries
			WHERE reference_type = $1 AND reference_id = $2 AND is_reversal = true
		)
	`, referenceType, referenceID).Scan(&reversed)
	if err != nil {
		return fmt.Errorf("check reversal status for %s %d: %w", referenceType, referenceID, err)
	}
	if reversed {
		return stateConflictErr(ErrAlreadyReversed, "ledger entries for %s %d", referenceType, referenceID)
	}

	originals, err := fetchEntries(ctx, tx, referenceType, referenceID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, e := range originals {
		opposite := Credit
		if e.Type == Credit {
			opposite = Debit
		}
		description := e.Description
		if reason != "" {
			description = fmt.Sprintf("Reversal: %s (%s)", e.Description, reason)
		}
		if err := l.insertEntry(ctx, tx, AccountRef{Kind: e.AccountKind, ID: e.AccountID}, opposite,
			e.Amount, e.Currency, e.ExchangeRate, e.BaseAmount,
			description, referenceType, referenceID, true, now, actor); err != nil {
			return err
		}
	}

	l.log.Info().
		Str("reference_type", referenceType).
		Int("reference_id", referenceID).
		Int("entries", len(originals)).
		Str("actor", actor).
		Msg("ledger reversed")
	return nil
}

// CalculateAccountBalance sums signed base amounts for an account up to and
// including asOf. Debits add, credits subtract; reversals are ordinary
// entries and cancel their originals arithmetically.
func (l *FinancialLedger) CalculateAccountBalance(ctx context.Context, account AccountRef, asOf time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(
		    CASE WHEN entry_type = 'debit' THEN base_amount ELSE -base_amount END
		), 0)
		FROM ledger_entries
		WHERE account_kind = $1 AND account_id = $2 AND transaction_date <= $3
	`, string(account.Kind), account.ID, asOf).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("calculate balance for %s account %d: %w", account.Kind, account.ID, err)
	}
	return balance, nil
}

// GetEntriesForInvoice returns all entries posted under an invoice,
// reversals included, in insertion order.
func (l *FinancialLedger) GetEntriesForInvoice(ctx context.Context, invoiceID int) ([]LedgerEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, account_kind, account_id, entry_type, amount, currency,
		       exchange_rate, base_amount, reference_type, reference_id,
		       is_reversal, transaction_date, description, actor, created_at
		FROM ledger_entries
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY id
	`, ReferenceTypeInvoice, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries for invoice %d: %w", invoiceID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (l *FinancialLedger) insertEntry(ctx context.Context, tx pgx.Tx, account AccountRef,
	entryType TransactionType, amount decimal.Decimal, currency string, exchangeRate, baseAmount decimal.Decimal,
	description, referenceType string, referenceID int, isReversal bool, transactionDate time.Time, actor string) error {

	if err := verifyAccount(ctx, tx, account); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries
		            (account_kind, account_id, entry_type, amount, currency,
		             exchange_rate, base_amount, reference_type, reference_id,
		             is_reversal, transaction_date, description, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, string(account.Kind), account.ID, string(entryType), amount, currency,
		exchangeRate, baseAmount, referenceType, referenceID,
		isReversal, transactionDate, description, actor)
	if err != nil {
		return fmt.Errorf("insert %s entry for %s account %d: %w", entryType, account.Kind, account.ID, err)
	}
	return nil
}

// verifyAccount rejects postings against accounts that do not exist, so a
// misconfigured rule fails loudly instead of orphaning ledger rows.
func verifyAccount(ctx context.Context, tx pgx.Tx, account AccountRef) error {
	var table string
	switch account.Kind {
	case AccountCustomer, AccountSupplier:
		table = "counterparties"
	case AccountGL:
		table = "gl_accounts"
	default:
		return fmt.Errorf("unknown account kind %q", account.Kind)
	}

	var exists bool
	err := tx.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table), account.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("verify %s account %d: %w", account.Kind, account.ID, err)
	}
	if !exists {
		if account.Kind == AccountGL {
			return notFoundErr(ErrClaimAccountNotFound, "gl account id %d", account.ID)
		}
		return notFoundErr(ErrCounterpartyNotFound, "id %d", account.ID)
	}
	return nil
}

func fetchEntries(ctx context.Context, tx pgx.Tx, referenceType string, referenceID int) ([]LedgerEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, account_kind, account_id, entry_type, amount, currency,
		       exchange_rate, base_amount, reference_type, reference_id,
		       is_reversal, transaction_date, description, actor, created_at
		FROM ledger_entries
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY id
	`, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger entries for %s %d: %w", referenceType, referenceID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountKind, &e.AccountID, &e.Type, &e.Amount, &e.Currency,
			&e.ExchangeRate, &e.BaseAmount, &e.ReferenceType, &e.ReferenceID,
			&e.IsReversal, &e.TransactionDate, &e.Description, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
