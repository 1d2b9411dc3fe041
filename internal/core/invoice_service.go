package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CreateInvoiceInput carries everything needed to create a draft invoice.
type CreateInvoiceInput struct {
	Direction         InvoiceDirection
	CounterpartyID    int
	OriginalInvoiceID *int
	Lines             []LineInput
	Notes             string
	Actor             string
}

// UpdateInvoiceInput replaces a draft invoice's lines and notes. Totals are
// always recomputed from the new lines.
type UpdateInvoiceInput struct {
	Lines []LineInput
	Notes string
	Actor string
}

// InvoiceService drives the invoice lifecycle. Confirm and Cancel are the
// only paths that touch stock and the financial ledger, and each runs as a
// single transaction: header flip, movements and ledger pairs all commit or
// none do.
type InvoiceService struct {
	pool           *pgxpool.Pool
	counterparties CounterpartyDirectory
	processor      *LineItemProcessor
	sequences      SequenceGenerator
	stock          *StockLedger
	ledger         *FinancialLedger
	accounts       AccountResolver
	log            zerolog.Logger
}

func NewInvoiceService(pool *pgxpool.Pool, counterparties CounterpartyDirectory,
	processor *LineItemProcessor, sequences SequenceGenerator,
	stock *StockLedger, ledger *FinancialLedger, accounts AccountResolver,
	log zerolog.Logger) *InvoiceService {

	return &InvoiceService{
		pool:           pool,
		counterparties: counterparties,
		processor:      processor,
		sequences:      sequences,
		stock:          stock,
		ledger:         ledger,
		accounts:       accounts,
		log:            log,
	}
}

// Create validates the header and lines, computes totals, and persists a
// draft invoice with a freshly issued number. Drafts have no stock or ledger
// effects.
func (s *InvoiceService) Create(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if !in.Direction.Valid() {
		return nil, validationErr(ErrInvalidDirection, "%q", in.Direction)
	}
	if len(in.Lines) == 0 {
		return nil, validationErr(ErrEmptyInvoice, "direction %s", in.Direction)
	}

	cp, err := s.counterparties.GetCounterparty(ctx, in.CounterpartyID)
	if err != nil {
		return nil, err
	}
	if !cp.IsActive {
		return nil, validationErr(ErrCounterpartyInactive, "%s", cp.Code)
	}
	if cp.Role != in.Direction.CounterpartyRole() {
		return nil, validationErr(ErrCounterpartyRoleMismatch,
			"%s is a %s, %s needs a %s", cp.Code, cp.Role, in.Direction, in.Direction.CounterpartyRole())
	}

	if err := s.validateOriginal(ctx, in.Direction, in.CounterpartyID, in.OriginalInvoiceID); err != nil {
		return nil, err
	}

	processed := make([]ProcessedLine, 0, len(in.Lines))
	for i, raw := range in.Lines {
		line, err := s.processor.Process(ctx, in.Direction, raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		processed = append(processed, line)
	}
	totals := AggregateTotals(processed)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	number, err := s.sequences.NextTx(ctx, tx, in.Direction.Series())
	if err != nil {
		return nil, err
	}

	var invoiceID int
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices
		            (number, direction, counterparty_id, original_invoice_id,
		             status, payment_status, subtotal, discount1_total, discount2_total,
		             tax_total, grand_total, paid_amount, notes, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, NOW(), $13)
		RETURNING id
	`, number, string(in.Direction), in.CounterpartyID, in.OriginalInvoiceID,
		string(StatusDraft), string(PaymentPending),
		totals.Subtotal, totals.Discount1Total, totals.Discount2Total,
		totals.TaxTotal, totals.GrandTotal, in.Notes, in.Actor).Scan(&invoiceID)
	if err != nil {
		return nil, fmt.Errorf("insert invoice %s: %w", number, err)
	}

	if err := insertLines(ctx, tx, invoiceID, processed); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoice %s: %w", number, err)
	}

	s.log.Info().
		Str("number", number).
		Str("direction", string(in.Direction)).
		Str("grand_total", totals.GrandTotal.StringFixed(2)).
		Str("actor", in.Actor).
		Msg("invoice created")

	return s.Get(ctx, invoiceID)
}

// Update replaces a draft invoice's lines and notes and recomputes totals.
// Confirmed and cancelled invoices are immutable.
func (s *InvoiceService) Update(ctx context.Context, id int, in UpdateInvoiceInput) (*Invoice, error) {
	if len(in.Lines) == 0 {
		return nil, validationErr(ErrEmptyInvoice, "invoice %d", id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	header, err := lockHeader(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if header.Status != StatusDraft {
		return nil, stateConflictErr(ErrCannotModifyConfirmedInvoice, "invoice %s is %s", header.Number, header.Status)
	}

	processed := make([]ProcessedLine, 0, len(in.Lines))
	for i, raw := range in.Lines {
		line, err := s.processor.Process(ctx, header.Direction, raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		processed = append(processed, line)
	}
	totals := AggregateTotals(processed)

	if _, err := tx.Exec(ctx, "DELETE FROM invoice_lines WHERE invoice_id = $1", id); err != nil {
		return nil, fmt.Errorf("clear lines for invoice %d: %w", id, err)
	}
	if err := insertLines(ctx, tx, id, processed); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET subtotal = $1, discount1_total = $2, discount2_total = $3,
		    tax_total = $4, grand_total = $5, notes = $6
		WHERE id = $7
	`, totals.Subtotal, totals.Discount1Total, totals.Discount2Total,
		totals.TaxTotal, totals.GrandTotal, in.Notes, id)
	if err != nil {
		return nil, fmt.Errorf("update invoice %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoice %d update: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Confirm flips a draft to confirmed and applies its effects atomically:
// stock movements plus on-hand adjustment, then balanced ledger pairs. Any
// failure rolls back everything, leaving the invoice draft.
func (s *InvoiceService) Confirm(ctx context.Context, id int, actor string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	header, err := lockHeader(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if header.Status != StatusDraft {
		return nil, stateConflictErr(ErrInvalidStateTransition,
			"confirm requires draft, invoice %s is %s", header.Number, header.Status)
	}

	lines, err := loadLinesTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, validationErr(ErrEmptyInvoice, "invoice %s", header.Number)
	}

	if err := s.stock.ApplyTx(ctx, tx, id, lines, header.Direction.MovementDirection(), actor); err != nil {
		return nil, err
	}

	if err := s.postEntries(ctx, tx, header, lines, actor); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET status = $1, confirmed_at = NOW(), confirmed_by = $2
		WHERE id = $3
	`, string(StatusConfirmed), actor, id)
	if err != nil {
		return nil, fmt.Errorf("mark invoice %s confirmed: %w", header.Number, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm of invoice %s: %w", header.Number, err)
	}

	s.log.Info().Str("number", header.Number).Str("actor", actor).Msg("invoice confirmed")
	return s.Get(ctx, id)
}

// Cancel reverses a confirmed invoice: reversing ledger pairs, opposite stock
// movements, then the status flip, all in one transaction. Paid invoices
// cannot be cancelled; refund first, then cancel.
func (s *InvoiceService) Cancel(ctx context.Context, id int, reason, actor string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	header, err := lockHeader(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if header.Status != StatusConfirmed {
		return nil, stateConflictErr(ErrInvalidStateTransition,
			"cancel requires confirmed, invoice %s is %s", header.Number, header.Status)
	}
	if header.PaymentStatus == PaymentPaid {
		return nil, stateConflictErr(ErrCannotCancelPaidInvoice, "invoice %s", header.Number)
	}

	if err := s.ledger.ReverseTx(ctx, tx, ReferenceTypeInvoice, id, reason, actor); err != nil {
		return nil, err
	}
	if err := s.stock.ReverseTx(ctx, tx, id, reason, actor); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET status = $1, cancelled_at = NOW(), cancelled_by = $2, cancel_reason = $3
		WHERE id = $4
	`, string(StatusCancelled), actor, reason, id)
	if err != nil {
		return nil, fmt.Errorf("mark invoice %s cancelled: %w", header.Number, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel of invoice %s: %w", header.Number, err)
	}

	s.log.Info().Str("number", header.Number).Str("reason", reason).Str("actor", actor).Msg("invoice cancelled")
	return s.Get(ctx, id)
}

// MarkPaid settles the full remaining balance of a confirmed invoice.
func (s *InvoiceService) MarkPaid(ctx context.Context, id int, actor string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	header, err := lockHeader(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if header.Status != StatusConfirmed {
		return nil, stateConflictErr(ErrInvalidStateTransition,
			"payment requires confirmed, invoice %s is %s", header.Number, header.Status)
	}
	if header.PaymentStatus == PaymentPaid {
		return nil, stateConflictErr(ErrInvalidStateTransition,
			"invoice %s is already paid", header.Number)
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET payment_status = $1, paid_amount = grand_total, paid_at = NOW(), paid_by = $2
		WHERE id = $3
	`, string(PaymentPaid), actor, id)
	if err != nil {
		return nil, fmt.Errorf("mark invoice %s paid: %w", header.Number, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment of invoice %s: %w", header.Number, err)
	}
	return s.Get(ctx, id)
}

// MarkPartiallyPaid records a partial payment against a confirmed invoice.
// Accumulated payments may never exceed the grand total; reaching it exactly
// flips the invoice to paid.
func (s *InvoiceService) MarkPartiallyPaid(ctx context.Context, id int, amount decimal.Decimal, actor string) (*Invoice, error) {
	if !amount.IsPositive() {
		return nil, validationErr(ErrInvalidAmount, "payment of %s", amount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	header, err := lockHeader(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if header.Status != StatusConfirmed {
		return nil, stateConflictErr(ErrInvalidStateTransition,
			"payment requires confirmed, invoice %s is %s", header.Number, header.Status)
	}

	newPaid := header.PaidAmount.Add(amount)
	if newPaid.GreaterThan(header.Totals.GrandTotal) {
		return nil, validationErr(ErrInvalidAmount,
			"payment of %s would exceed grand total %s (already paid %s)",
			amount.StringFixed(2), header.Totals.GrandTotal.StringFixed(2), header.PaidAmount.StringFixed(2))
	}

	status := PaymentPartial
	if newPaid.Equal(header.Totals.GrandTotal) {
		status = PaymentPaid
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET payment_status = $1, paid_amount = $2, paid_at = NOW(), paid_by = $3
		WHERE id = $4
	`, string(status), newPaid, actor, id)
	if err != nil {
		return nil, fmt.Errorf("record payment on invoice %s: %w", header.Number, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment on invoice %s: %w", header.Number, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a draft invoice and its lines. Confirmed invoices are
// cancelled, never deleted.
func (s *InvoiceService) Delete(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	header, err := lockHeader(ctx, tx, id)
	if err != nil {
		return err
	}
	if header.Status != StatusDraft {
		return stateConflictErr(ErrCannotModifyConfirmedInvoice, "invoice %s is %s", header.Number, header.Status)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM invoice_lines WHERE invoice_id = $1", id); err != nil {
		return fmt.Errorf("delete lines of invoice %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM invoices WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}
	return tx.Commit(ctx)
}

// Get loads a full invoice with lines and counterparty identity.
func (s *InvoiceService) Get(ctx context.Context, id int) (*Invoice, error) {
	var inv Invoice
	err := s.pool.QueryRow(ctx, `
		SELECT i.id, i.number, i.direction, i.counterparty_id, c.code, c.name,
		       i.original_invoice_id, i.status, i.payment_status,
		       i.subtotal, i.discount1_total, i.discount2_total, i.tax_total, i.grand_total,
		       i.paid_amount, i.notes, i.created_at, i.created_by,
		       i.confirmed_at, i.confirmed_by, i.cancelled_at, i.cancelled_by,
		       i.cancel_reason, i.paid_at, i.paid_by
		FROM invoices i
		JOIN counterparties c ON c.id = i.counterparty_id
		WHERE i.id = $1
	`, id).Scan(&inv.ID, &inv.Number, &inv.Direction, &inv.CounterpartyID,
		&inv.CounterpartyCode, &inv.CounterpartyName,
		&inv.OriginalInvoiceID, &inv.Status, &inv.PaymentStatus,
		&inv.Totals.Subtotal, &inv.Totals.Discount1Total, &inv.Totals.Discount2Total,
		&inv.Totals.TaxTotal, &inv.Totals.GrandTotal,
		&inv.PaidAmount, &inv.Notes, &inv.CreatedAt, &inv.CreatedBy,
		&inv.ConfirmedAt, &inv.ConfirmedBy, &inv.CancelledAt, &inv.CancelledBy,
		&inv.CancelReason, &inv.PaidAt, &inv.PaidBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr(ErrInvoiceNotFound, "id %d", id)
		}
		return nil, fmt.Errorf("fetch invoice %d: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, lineSelect+" WHERE invoice_id = $1 ORDER BY line_number", id)
	if err != nil {
		return nil, fmt.Errorf("query lines of invoice %d: %w", id, err)
	}
	defer rows.Close()
	inv.Lines, err = scanLines(rows)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetByNumber resolves an invoice number to its record.
func (s *InvoiceService) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	var id int
	err := s.pool.QueryRow(ctx, "SELECT id FROM invoices WHERE number = $1", number).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr(ErrInvoiceNotFound, "number %s", number)
		}
		return nil, fmt.Errorf("fetch invoice %s: %w", number, err)
	}
	return s.Get(ctx, id)
}

// validateOriginal enforces the return-invoice linkage: returns must
// reference a confirmed invoice of the base direction for the same
// counterparty; non-returns must not reference anything.
func (s *InvoiceService) validateOriginal(ctx context.Context, direction InvoiceDirection, counterpartyID int, originalID *int) error {
	if !direction.IsReturn() {
		if originalID != nil {
			return validationErr(ErrOriginalInvoiceInvalid, "%s invoices cannot reference an original", direction)
		}
		return nil
	}
	if originalID == nil {
		return validationErr(ErrOriginalInvoiceRequired, "direction %s", direction)
	}

	var origDirection InvoiceDirection
	var origStatus InvoiceStatus
	var origCounterparty int
	err := s.pool.QueryRow(ctx, `
		SELECT direction, status, counterparty_id FROM invoices WHERE id = $1
	`, *originalID).Scan(&origDirection, &origStatus, &origCounterparty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundErr(ErrInvoiceNotFound, "original invoice id %d", *originalID)
		}
		return fmt.Errorf("fetch original invoice %d: %w", *originalID, err)
	}

	if origDirection != direction.BaseDirection() || origStatus != StatusConfirmed || origCounterparty != counterpartyID {
		return validationErr(ErrOriginalInvoiceInvalid,
			"invoice %d is a %s %s for counterparty %d", *originalID, origStatus, origDirection, origCounterparty)
	}
	return nil
}

// postEntries writes the balanced ledger pairs for a confirm. The
// counterparty subledger carries the settlement amount in two pairs (goods
// net of discounts, then tax); tier-2 discounts post a third pair against
// their claim accounts so the claiming party absorbs the cost instead of the
// trade account.
func (s *InvoiceService) postEntries(ctx context.Context, tx pgx.Tx, header *Invoice, lines []InvoiceLine, actor string) error {
	tradeRule, taxRule := postingRules(header.Direction)
	tradeAccountID, err := s.accounts.ResolveAccount(ctx, tradeRule)
	if err != nil {
		return err
	}
	tradeAccount := AccountRef{Kind: AccountGL, ID: tradeAccountID}

	cpKind := AccountCustomer
	if header.Direction.CounterpartyRole() == RoleSupplier {
		cpKind = AccountSupplier
	}
	cpAccount := AccountRef{Kind: cpKind, ID: header.CounterpartyID}

	// Sales and purchase returns debit the counterparty; purchases and sales
	// returns credit it. The pair helper swaps sides accordingly.
	counterpartyDebits := header.Direction.MovementDirection() == MovementOut
	pair := func(other AccountRef, amount decimal.Decimal, description string) error {
		if !amount.IsPositive() {
			return nil
		}
		debit, credit := cpAccount, other
		if !counterpartyDebits {
			debit, credit = other, cpAccount
		}
		return s.ledger.CreateDoubleEntryTx(ctx, tx, debit, credit, amount,
			DefaultCurrency, decimal.NewFromInt(1), description,
			ReferenceTypeInvoice, header.ID, time.Now(), actor)
	}

	net := header.Totals.Subtotal.Sub(header.Totals.DiscountTotal())
	if err := pair(tradeAccount, net, fmt.Sprintf("%s %s", header.Direction, header.Number)); err != nil {
		return err
	}

	if header.Totals.TaxTotal.IsPositive() {
		taxAccountID, err := s.accounts.ResolveAccount(ctx, taxRule)
		if err != nil {
			return err
		}
		taxAccount := AccountRef{Kind: AccountGL, ID: taxAccountID}
		if err := pair(taxAccount, header.Totals.TaxTotal, fmt.Sprintf("GST on %s", header.Number)); err != nil {
			return err
		}
	}

	// Tier-2 claims move the absorbed discount from the trade account to the
	// claim account, grouped per claim account across lines.
	for claimID, amount := range claimTotals(lines) {
		claimAccount := AccountRef{Kind: AccountGL, ID: claimID}
		debit, credit := claimAccount, tradeAccount
		if !counterpartyDebits {
			debit, credit = tradeAccount, claimAccount
		}
		if err := s.ledger.CreateDoubleEntryTx(ctx, tx, debit, credit, amount,
			DefaultCurrency, decimal.NewFromInt(1),
			fmt.Sprintf("discount claim on %s", header.Number),
			ReferenceTypeInvoice, header.ID, time.Now(), actor); err != nil {
			return err
		}
	}
	return nil
}

func claimTotals(lines []InvoiceLine) map[int]decimal.Decimal {
	totals := make(map[int]decimal.Decimal)
	for _, line := range lines {
		if line.ClaimAccountID != nil && line.Discount2Amount.IsPositive() {
			totals[*line.ClaimAccountID] = totals[*line.ClaimAccountID].Add(line.Discount2Amount)
		}
	}
	return totals
}

// lockHeader loads an invoice header FOR UPDATE so lifecycle transitions
// serialize per invoice.
func lockHeader(ctx context.Context, tx pgx.Tx, id int) (*Invoice, error) {
	var inv Invoice
	err := tx.QueryRow(ctx, `
		SELECT id, number, direction, counterparty_id, original_invoice_id,
		       status, payment_status, subtotal, discount1_total, discount2_total,
		       tax_total, grand_total, paid_amount
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&inv.ID, &inv.Number, &inv.Direction, &inv.CounterpartyID, &inv.OriginalInvoiceID,
		&inv.Status, &inv.PaymentStatus,
		&inv.Totals.Subtotal, &inv.Totals.Discount1Total, &inv.Totals.Discount2Total,
		&inv.Totals.TaxTotal, &inv.Totals.GrandTotal, &inv.PaidAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr(ErrInvoiceNotFound, "id %d", id)
		}
		return nil, fmt.Errorf("lock invoice %d: %w", id, err)
	}
	return &inv, nil
}

const lineSelect = `
	SELECT id, invoice_id, line_number, item_id, item_code, item_name,
	       quantity, unit_price, subtotal,
	       discount1_pct, discount1_amount, discount2_pct, discount2_amount,
	       claim_account_id, taxable_amount, tax_amount, withholding_amount,
	       line_total, batch_number, manufactured_on, expires_on
	FROM invoice_lines`

func loadLinesTx(ctx context.Context, tx pgx.Tx, invoiceID int) ([]InvoiceLine, error) {
	rows, err := tx.Query(ctx, lineSelect+" WHERE invoice_id = $1 ORDER BY line_number", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query lines of invoice %d: %w", invoiceID, err)
	}
	defer rows.Close()
	return scanLines(rows)
}

func scanLines(rows pgx.Rows) ([]InvoiceLine, error) {
	var lines []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		var batchNumber *string
		var manufacturedOn, expiresOn *time.Time
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.LineNumber, &l.ItemID, &l.ItemCode, &l.ItemName,
			&l.Quantity, &l.UnitPrice, &l.Subtotal,
			&l.Discount1Pct, &l.Discount1Amount, &l.Discount2Pct, &l.Discount2Amount,
			&l.ClaimAccountID, &l.TaxableAmount, &l.TaxAmount, &l.WithholdingAmount,
			&l.LineTotal, &batchNumber, &manufacturedOn, &expiresOn); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		if batchNumber != nil || manufacturedOn != nil || expiresOn != nil {
			b := &Batch{ManufacturedOn: manufacturedOn, ExpiresOn: expiresOn}
			if batchNumber != nil {
				b.Number = *batchNumber
			}
			l.Batch = b
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice lines: %w", err)
	}
	return lines, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int, lines []ProcessedLine) error {
	for i, l := range lines {
		var batchNumber *string
		var manufacturedOn, expiresOn *time.Time
		if l.Batch != nil {
			if l.Batch.Number != "" {
				batchNumber = &l.Batch.Number
			}
			manufacturedOn = l.Batch.ManufacturedOn
			expiresOn = l.Batch.ExpiresOn
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines
			            (invoice_id, line_number, item_id, item_code, item_name,
			             quantity, unit_price, subtotal,
			             discount1_pct, discount1_amount, discount2_pct, discount2_amount,
			             claim_account_id, taxable_amount, tax_amount, withholding_amount,
			             line_total, batch_number, manufactured_on, expires_on)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			        $13, $14, $15, $16, $17, $18, $19, $20)
		`, invoiceID, i+1, l.ItemID, l.ItemCode, l.ItemName,
			l.Quantity, l.UnitPrice, l.Subtotal,
			l.Discount1Pct, l.Discount1Amount, l.Discount2Pct, l.Discount2Amount,
			l.ClaimAccountID, l.TaxableAmount, l.TaxAmount, l.WithholdingAmount,
			l.LineTotal, batchNumber, manufacturedOn, expiresOn)
		if err != nil {
			return fmt.Errorf("insert line %d of invoice %d: %w", i+1, invoiceID, err)
		}
	}
	return nil
}
