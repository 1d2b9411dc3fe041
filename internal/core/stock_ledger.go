package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StockLedger owns per-item on-hand quantity and the append-only movement
// log. On-hand is never written by any other component; adjustments happen
// under a per-item row lock so concurrent confirms serialize and cannot both
// pass a stale sufficiency check.
//
// ApplyTx and ReverseTx run inside the caller's transaction so movements,
// on-hand adjustments and the invoice status flip commit or roll back as one
// unit.
type StockLedger struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewStockLedger(pool *pgxpool.Pool, log zerolog.Logger) *StockLedger {
	return &StockLedger{pool: pool, log: log}
}

// ApplyTx appends one movement per line and adjusts each item's on-hand by
// the signed amount. For outbound movements every line's sufficiency is
// verified under lock before any write; a single failing line rejects the
// whole apply with InsufficientStock and nothing is written.
func (s *StockLedger) ApplyTx(ctx context.Context, tx pgx.Tx, invoiceID int, lines []InvoiceLine, direction MovementDirection, actor string) error {
	onHand, err := lockItems(ctx, tx, itemIDsOf(lines))
	if err != nil {
		return err
	}

	if direction == MovementOut {
		// Required across all lines before the first write: no partial
		// application within one invoice.
		need := make(map[int]decimal.Decimal)
		for _, line := range lines {
			need[line.ItemID] = need[line.ItemID].Add(line.Quantity)
		}
		for _, line := range lines {
			if onHand[line.ItemID].LessThan(need[line.ItemID]) {
				return resourceErr(ErrInsufficientStock, "item %s: on hand %s, required %s",
					line.ItemCode, onHand[line.ItemID].StringFixed(4), need[line.ItemID].StringFixed(4))
			}
		}
	}

	for _, line := range lines {
		if err := appendMovement(ctx, tx, line.ItemID, direction, line.Quantity, invoiceID, false, line.Batch, actor); err != nil {
			return err
		}
		if err := adjustOnHand(ctx, tx, line.ItemID, signedQty(direction, line.Quantity), false); err != nil {
			return err
		}
	}

	s.log.Info().
		Int("invoice_id", invoiceID).
		Str("direction", string(direction)).
		Int("lines", len(lines)).
		Str("actor", actor).
		Msg("stock applied")
	return nil
}

// ReverseTx appends an equal-and-opposite movement for every movement
// previously recorded under the invoice reference and adjusts on-hand
// accordingly. A second reverse for the same invoice fails with
// AlreadyReversed instead of double-adjusting stock.
func (s *StockLedger) ReverseTx(ctx context.Context, tx pgx.Tx, invoiceID int, reason, actor string) error {
	var reversed bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM stock_movements
			WHERE reference_type = $1 AND reference_id = $2 AND is_reversal = true
		)
	`, ReferenceTypeInvoice, invoiceID).Scan(&reversed)
	if err != nil {
		return fmt.Errorf("check reversal status for invoice %d: %w", invoiceID, err)
	}
	if reversed {
		return stateConflictErr(ErrAlreadyReversed, "stock movements for invoice %d", invoiceID)
	}

	originals, err := fetchMovements(ctx, tx, invoiceID)
	if err != nil {
		return err
	}

	if _, err := lockItems(ctx, tx, movementItemIDs(originals)); err != nil {
		return err
	}

	for _, m := range originals {
		opposite := m.Direction.Opposite()
		if err := appendMovement(ctx, tx, m.ItemID, opposite, m.Quantity, invoiceID, true, m.Batch, actor); err != nil {
			return err
		}
		// Clamped at zero as a defensive floor; a reconciled ledger never
		// needs the clamp.
		if err := adjustOnHand(ctx, tx, m.ItemID, signedQty(opposite, m.Quantity), true); err != nil {
			return err
		}
	}

	s.log.Info().
		Int("invoice_id", invoiceID).
		Int("movements", len(originals)).
		Str("reason", reason).
		Str("actor", actor).
		Msg("stock reversed")
	return nil
}

// GetMovementsForInvoice returns the full movement history for an invoice,
// reversals included, in insertion order.
func (s *StockLedger) GetMovementsForInvoice(ctx context.Context, invoiceID int) ([]StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sm.id, sm.item_id, i.code, sm.direction, sm.quantity,
		       sm.reference_type, sm.reference_id, sm.is_reversal,
		       sm.batch_number, sm.manufactured_on, sm.expires_on,
		       sm.moved_at, sm.actor
		FROM stock_movements sm
		JOIN items i ON i.id = sm.item_id
		WHERE sm.reference_type = $1 AND sm.reference_id = $2
		ORDER BY sm.id
	`, ReferenceTypeInvoice, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query movements for invoice %d: %w", invoiceID, err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

// Reconcile returns the item's stored on-hand quantity alongside the sum of
// its signed movements. The two must agree at all times.
func (s *StockLedger) Reconcile(ctx context.Context, itemID int) (onHand, movementSum decimal.Decimal, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT i.on_hand,
		       COALESCE((
		           SELECT SUM(CASE WHEN sm.direction = 'in' THEN sm.quantity ELSE -sm.quantity END)
		           FROM stock_movements sm
		           WHERE sm.item_id = i.id
		       ), 0)
		FROM items i
		WHERE i.id = $1
	`, itemID).Scan(&onHand, &movementSum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, decimal.Zero, notFoundErr(ErrItemNotFound, "id %d", itemID)
		}
		return decimal.Zero, decimal.Zero, fmt.Errorf("reconcile item %d: %w", itemID, err)
	}
	return onHand, movementSum, nil
}

// lockItems locks the item rows in ascending id order (consistent lock order
// avoids deadlocks between concurrent invoices) and returns their on-hand
// quantities.
func lockItems(ctx context.Context, tx pgx.Tx, itemIDs []int) (map[int]decimal.Decimal, error) {
	sort.Ints(itemIDs)
	onHand := make(map[int]decimal.Decimal, len(itemIDs))
	for _, id := range itemIDs {
		var qty decimal.Decimal
		err := tx.QueryRow(ctx, "SELECT on_hand FROM items WHERE id = $1 FOR UPDATE", id).Scan(&qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFoundErr(ErrItemNotFound, "id %d", id)
			}
			return nil, fmt.Errorf("lock item %d: %w", id, err)
		}
		onHand[id] = qty
	}
	return onHand, nil
}

func itemIDsOf(lines []InvoiceLine) []int {
	seen := make(map[int]bool, len(lines))
	var ids []int
	for _, l := range lines {
		if !seen[l.ItemID] {
			seen[l.ItemID] = true
			ids = append(ids, l.ItemID)
		}
	}
	return ids
}

func movementItemIDs(movements []StockMovement) []int {
	seen := make(map[int]bool, len(movements))
	var ids []int
	for _, m := range movements {
		if !seen[m.ItemID] {
			seen[m.ItemID] = true
			ids = append(ids, m.ItemID)
		}
	}
	return ids
}

func signedQty(direction MovementDirection, qty decimal.Decimal) decimal.Decimal {
	if direction == MovementOut {
		return qty.Neg()
	}
	return qty
}

func appendMovement(ctx context.Context, tx pgx.Tx, itemID int, direction MovementDirection,
	qty decimal.Decimal, invoiceID int, isReversal bool, batch *Batch, actor string) error {

	var batchNumber *string
	var manufacturedOn, expiresOn *time.Time
	if batch != nil {
		if batch.Number != "" {
			batchNumber = &batch.Number
		}
		manufacturedOn = batch.ManufacturedOn
		expiresOn = batch.ExpiresOn
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements
		            (item_id, direction, quantity, reference_type, reference_id,
		             is_reversal, batch_number, manufactured_on, expires_on, moved_at, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10)
	`, itemID, string(direction), qty, ReferenceTypeInvoice, invoiceID,
		isReversal, batchNumber, manufacturedOn, expiresOn, actor)
	if err != nil {
		return fmt.Errorf("append movement for item %d: %w", itemID, err)
	}
	return nil
}

func adjustOnHand(ctx context.Context, tx pgx.Tx, itemID int, delta decimal.Decimal, clamp bool) error {
	query := "UPDATE items SET on_hand = on_hand + $1 WHERE id = $2"
	if clamp {
		query = "UPDATE items SET on_hand = GREATEST(on_hand + $1, 0) WHERE id = $2"
	}
	if _, err := tx.Exec(ctx, query, delta, itemID); err != nil {
		return fmt.Errorf("adjust on-hand for item %d: %w", itemID, err)
	}
	return nil
}

func fetchMovements(ctx context.Context, tx pgx.Tx, invoiceID int) ([]StockMovement, error) {
	rows, err := tx.Query(ctx, `
		SELECT sm.id, sm.item_id, i.code, sm.direction, sm.quantity,
		       sm.reference_type, sm.reference_id, sm.is_reversal,
		       sm.batch_number, sm.manufactured_on, sm.expires_on,
		       sm.moved_at, sm.actor
		FROM stock_movements sm
		JOIN items i ON i.id = sm.item_id
		WHERE sm.reference_type = $1 AND sm.reference_id = $2
		ORDER BY sm.id
	`, ReferenceTypeInvoice, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("fetch movements for invoice %d: %w", invoiceID, err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]StockMovement, error) {
	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		var batchNumber *string
		var manufacturedOn, expiresOn *time.Time
		if err := rows.Scan(&m.ID, &m.ItemID, &m.ItemCode, &m.Direction, &m.Quantity,
			&m.ReferenceType, &m.ReferenceID, &m.IsReversal,
			&batchNumber, &manufacturedOn, &expiresOn,
			&m.MovedAt, &m.Actor); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		if batchNumber != nil || manufacturedOn != nil || expiresOn != nil {
			b := &Batch{ManufacturedOn: manufacturedOn, ExpiresOn: expiresOn}
			if batchNumber != nil {
				b.Number = *batchNumber
			}
			m.Batch = b
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}
	return movements, nil
}
