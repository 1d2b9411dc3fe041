package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharma-erp/internal/core"

	"github.com/shopspring/decimal"
)

func TestFinancialLedger_BalancedPostingWithClaims(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	customerID := seedCounterparty(t, pool, ctx, core.RoleCustomer, "C001")
	itemID := seedItem(t, pool, ctx, "PARA-500", 200, 10, 17)
	claimAccount := glAccountID(t, pool, ctx, "6300")

	// 100 × 10 = 1000; 10% = 100; 5% of 900 = 45; taxable 855; GST = 145.35.
	inv, err := svc.invoices.Create(ctx, core.CreateInvoiceInput{
		Direction:      core.DirectionSale,
		CounterpartyID: customerID,
		Lines: []core.LineInput{
			{
				ItemID:         itemID,
				Quantity:       decimal.NewFromInt(100),
				Discount1Pct:   pctPtr(10),
				Discount2Pct:   pctPtr(5),
				ClaimAccountID: &claimAccount,
			},
		},
		Actor: "tester",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !inv.Totals.GrandTotal.Equal(decimal.NewFromFloat(1000.35)) {
		t.Fatalf("Expected grand total 1000.35, got %s", inv.Totals.GrandTotal)
	}

	if _, err := svc.invoices.Confirm(ctx, inv.ID, "tester"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	entries, err := svc.ledger.GetEntriesForInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetEntriesForInvoice failed: %v", err)
	}
	// Net pair, GST pair, claim pair.
	if len(entries) != 6 {
		t.Fatalf("Expected 6 ledger entries, got %d", len(entries))
	}

	debits, credits := decimal.Zero, decimal.Zero
	customerDebit, claimDebit := decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.Type == core.Debit {
			debits = debits.Add(e.BaseAmount)
		} else {
			credits = credits.Add(e.BaseAmount)
		}
		if e.AccountKind == core.AccountCustomer && e.Type == core.Debit {
			customerDebit = customerDebit.Add(e.BaseAmount)
		}
		if e.AccountKind == core.AccountGL && e.AccountID == claimAccount && e.Type == core.Debit {
			claimDebit = claimDebit.Add(e.BaseAmount)
		}
	}
	if !debits.Equal(credits) {
		t.Errorf("Ledger out of balance: debits %s, credits %s", debits, credits)
	}
	// The customer owes the settlement amount; the claim account absorbs the
	// tier-2 discount.
	if !customerDebit.Equal(decimal.NewFromFloat(1000.35)) {
		t.Errorf("Expected customer debit 1000.35, got %s", customerDebit)
	}
	if !claimDebit.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Expected claim account debit 45, got %s", claimDebit)
	}
}

func TestFinancialLedger_AccountBalanceAndReversal(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	customerID := seedCounterparty(t, pool, ctx, core.RoleCustomer, "C001")
	itemID := seedItem(t, pool, ctx, "PARA-500", 100, 500, 0)

	inv, err := svc.invoices.Create(ctx, core.CreateInvoiceInput{
		Direction:      core.DirectionSale,
		CounterpartyID: customerID,
		Lines:          []core.LineInput{{ItemID: itemID, Quantity: decimal.NewFromInt(4)}},
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.invoices.Confirm(ctx, inv.ID, "tester"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	customer := core.AccountRef{Kind: core.AccountCustomer, ID: customerID}
	balance, err := svc.ledger.CalculateAccountBalance(ctx, customer, time.Now())
	if err != nil {
		t.Fatalf("CalculateAccountBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected customer balance 2000, got %s", balance)
	}

	if _, err := svc.invoices.Cancel(ctx, inv.ID, "reposted", "tester"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	balance, err = svc.ledger.CalculateAccountBalance(ctx, customer, time.Now())
	if err != nil {
		t.Fatalf("CalculateAccountBalance failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected zero balance after reversal, got %s", balance)
	}

	// The second reversal must refuse.
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback(ctx)
	err = svc.ledger.ReverseTx(ctx, tx, core.ReferenceTypeInvoice, inv.ID, "again", "tester")
	if !errors.Is(err, core.ErrAlreadyReversed) {
		t.Fatalf("Expected ErrAlreadyReversed, got %v", err)
	}
}

func TestFinancialLedger_RejectsBadEntries(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	customerID := seedCounterparty(t, pool, ctx, core.RoleCustomer, "C001")
	sales := core.AccountRef{Kind: core.AccountGL, ID: glAccountID(t, pool, ctx, "4000")}
	customer := core.AccountRef{Kind: core.AccountCustomer, ID: customerID}
	one := decimal.NewFromInt(1)

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback(ctx)

	err = svc.ledger.CreateDoubleEntryTx(ctx, tx, customer, sales,
		decimal.Zero, "PKR", one, "zero amount", core.ReferenceTypeInvoice, 1, time.Now(), "tester")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for zero amount, got %v", err)
	}

	err = svc.ledger.CreateDoubleEntryTx(ctx, tx, customer, sales,
		decimal.NewFromInt(100), "PKR", one, "future", core.ReferenceTypeInvoice, 1,
		time.Now().Add(48*time.Hour), "tester")
	if !errors.Is(err, core.ErrFutureTransactionDate) {
		t.Errorf("Expected ErrFutureTransactionDate, got %v", err)
	}

	err = svc.ledger.CreateDoubleEntryTx(ctx, tx, core.AccountRef{Kind: core.AccountCustomer, ID: 99999}, sales,
		decimal.NewFromInt(100), "PKR", one, "ghost account", core.ReferenceTypeInvoice, 1, time.Now(), "tester")
	if !errors.Is(err, core.ErrCounterpartyNotFound) {
		t.Errorf("Expected ErrCounterpartyNotFound for unknown account, got %v", err)
	}
}

func TestFinancialLedger_PurchasePostsMirrored(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	supplierID := seedCounterparty(t, pool, ctx, core.RoleSupplier, "S001")
	itemID := seedItem(t, pool, ctx, "PARA-500", 0, 10, 0)

	inv, err := svc.invoices.Create(ctx, core.CreateInvoiceInput{
		Direction:      core.DirectionPurchase,
		CounterpartyID: supplierID,
		Lines:          []core.LineInput{{ItemID: itemID, Quantity: decimal.NewFromInt(50)}},
		Actor:          "tester",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.invoices.Confirm(ctx, inv.ID, "tester"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	// Purchases credit the supplier subledger.
	supplier := core.AccountRef{Kind: core.AccountSupplier, ID: supplierID}
	balance, err := svc.ledger.CalculateAccountBalance(ctx, supplier, time.Now())
	if err != nil {
		t.Fatalf("CalculateAccountBalance failed: %v", err)
	}
	if !balance.Equal(inv.Totals.GrandTotal.Neg()) {
		t.Errorf("Expected supplier balance %s, got %s", inv.Totals.GrandTotal.Neg(), balance)
	}

	// And stock came in.
	if got := itemOnHand(t, pool, ctx, itemID); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected on_hand 50 after purchase, got %s", got)
	}
}
