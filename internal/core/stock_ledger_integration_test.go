package core_test

import (
	"context"
	"errors"
	"testing"

	"pharma-erp/internal/core"

	"github.com/shopspring/decimal"
)

func TestStockLedger_DoubleReverse(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	customerID := seedCounterparty(t, pool, ctx, core.RoleCustomer, "C001")
	itemID := seedItem(t, pool, ctx, "PARA-500", 100, 500, 0)

	inv, err := svc.invoices.Create(ctx, core.CreateInvoiceInput{
		Direction:      core.DirectionSale,
		CounterpartyID: customerID,
		Lines:          []core.LineInput{{ItemID: itemID, Quantity: decimal.NewFromInt(10)}},
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.invoices.Confirm(ctx, inv.ID, "tester"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if _, err := svc.invoices.Cancel(ctx, inv.ID, "ordered twice", "tester"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// A second reversal against the same invoice must refuse instead of
	// inflating stock.
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback(ctx)

	err = svc.stock.ReverseTx(ctx, tx, inv.ID, "again", "tester")
	if !errors.Is(err, core.ErrAlreadyReversed) {
		t.Fatalf("Expected ErrAlreadyReversed, got %v", err)
	}
	if core.KindOf(err) != core.KindStateConflict {
		t.Errorf("Expected KindStateConflict, got %v", core.KindOf(err))
	}

	if got := itemOnHand(t, pool, ctx, itemID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected on_hand 100 after refused double reverse, got %s", got)
	}
}

func TestStockLedger_ReconcileAfterLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	customerID := seedCounterparty(t, pool, ctx, core.RoleCustomer, "C001")
	supplierID := seedCounterparty(t, pool, ctx, core.RoleSupplier, "S001")
	itemID := seedItem(t, pool, ctx, "PARA-500", 100, 500, 0)

	// Purchase 40 in, sell 30 out, cancel the sale.
	purchase, err := svc.invoices.Create(ctx, core.CreateInvoiceInput{
		Direction:      core.DirectionPurchase,
		CounterpartyID: supplierID,
		Lines:          []core.LineInput{{ItemID: itemID, Quantity: decimal.NewFromInt(40)}},
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("Create purchase failed: %v", err)
	}
	if _, err := svc.invoices.Confirm(ctx, purchase.ID, "tester"); err != nil {
		t.Fatalf("Confirm purchase failed: %v", err)
	}

	sale, err := svc.invoices.Create(ctx, core.CreateInvoiceInput{
		Direction:      core.DirectionSale,
		CounterpartyID: customerID,
		Lines:          []core.LineInput{{ItemID: itemID, Quantity: decimal.NewFromInt(30)}},
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("Create sale failed: %v", err)
	}
	if _, err := svc.invoices.Confirm(ctx, sale.ID, "tester"); err != nil {
		t.Fatalf("Confirm sale failed: %v", err)
	}
	if _, err := svc.invoices.Cancel(ctx, sale.ID, "wrong customer", "tester"); err != nil {
		t.Fatalf("Cancel sale failed: %v", err)
	}

	if got := itemOnHand(t, pool, ctx, itemID); !got.Equal(decimal.NewFromInt(140)) {
		t.Errorf("Expected on_hand 140, got %s", got)
	}

	// The stored quantity and the movement sum must agree. The seed quantity
	// predates the movement log, so compare deltas.
	onHand, movementSum, err := svc.stock.Reconcile(ctx, itemID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	delta := onHand.Sub(decimal.NewFromInt(100))
	if !delta.Equal(movementSum) {
		t.Errorf("On-hand delta %s diverges from movement sum %s", delta, movementSum)
	}
}

func TestStockLedger_MultiLineAllOrNothing(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	customerID := seedCounterparty(t, pool, ctx, core.RoleCustomer, "C001")
	plentyID := seedItem(t, pool, ctx, "PARA-500", 100, 500, 0)
	scarceID := seedItem(t, pool, ctx, "AMOX-250", 2, 120, 0)

	inv, err := svc.invoices.Create(ctx, core.CreateInvoiceInput{
		Direction:      core.DirectionSale,
		CounterpartyID: customerID,
		Lines: []core.LineInput{
			{ItemID: plentyID, Quantity: decimal.NewFromInt(10)},
			{ItemID: scarceID, Quantity: decimal.NewFromInt(5)},
		},
		Actor: "tester",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.invoices.Confirm(ctx, inv.ID, "tester")
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	// One failing line rejects the whole invoice; the sufficient line must
	// not have moved either.
	if got := itemOnHand(t, pool, ctx, plentyID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected on_hand 100 for the sufficient item, got %s", got)
	}
	movements, _ := svc.stock.GetMovementsForInvoice(ctx, inv.ID)
	if len(movements) != 0 {
		t.Errorf("Expected zero movements, got %d", len(movements))
	}
}
