package core_test

import (
	"context"
	"errors"
	"testing"

	"pharma-erp/internal/core"

	"github.com/shopspring/decimal"
)

// stubClaims is an in-memory ClaimAccountDirectory for pure tests.
type stubClaims map[int]*core.ClaimAccount

func (s stubClaims) GetClaimAccount(_ context.Context, id int) (*core.ClaimAccount, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, core.ErrClaimAccountNotFound
}

func claimID(id int) *int { return &id }

func TestDiscountEngine_SequentialTiers(t *testing.T) {
	claims := stubClaims{
		7: {ID: 7, Code: "6300", Name: "Marketing Claims", IsActive: true, CanReceiveClaims: true},
	}
	engine := core.NewDiscountEngine(claims)
	ctx := context.Background()

	// 1000 base: tier 1 10% = 100, tier 2 5% of the remaining 900 = 45.
	res, err := engine.ApplySequentialDiscounts(ctx, decimal.NewFromInt(1000),
		decimal.NewFromInt(10), decimal.NewFromInt(5), claimID(7))
	if err != nil {
		t.Fatalf("ApplySequentialDiscounts failed: %v", err)
	}
	if !res.Discount1Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected tier-1 discount 100, got %s", res.Discount1Amount)
	}
	if !res.Discount2Amount.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Expected tier-2 discount 45, got %s", res.Discount2Amount)
	}
	if !res.FinalAmount.Equal(decimal.NewFromInt(855)) {
		t.Errorf("Expected final 855, got %s", res.FinalAmount)
	}
}

func TestDiscountEngine_CompoundsNotAdds(t *testing.T) {
	claims := stubClaims{
		7: {ID: 7, IsActive: true, CanReceiveClaims: true},
	}
	engine := core.NewDiscountEngine(claims)

	// Sequential 10% then 10% on 1000 is 100 + 90 = 190, not 200.
	res, err := engine.ApplySequentialDiscounts(context.Background(), decimal.NewFromInt(1000),
		decimal.NewFromInt(10), decimal.NewFromInt(10), claimID(7))
	if err != nil {
		t.Fatalf("ApplySequentialDiscounts failed: %v", err)
	}
	total := res.Discount1Amount.Add(res.Discount2Amount)
	if !total.Equal(decimal.NewFromInt(190)) {
		t.Errorf("Expected combined discount 190, got %s", total)
	}
	if !res.FinalAmount.Equal(decimal.NewFromInt(810)) {
		t.Errorf("Expected final 810, got %s", res.FinalAmount)
	}
}

func TestDiscountEngine_PercentBounds(t *testing.T) {
	engine := core.NewDiscountEngine(stubClaims{})
	ctx := context.Background()
	base := decimal.NewFromInt(500)

	tests := []struct {
		name string
		pct1 decimal.Decimal
		pct2 decimal.Decimal
	}{
		{"negative tier 1", decimal.NewFromInt(-1), decimal.Zero},
		{"tier 1 above 100", decimal.NewFromInt(101), decimal.Zero},
		{"negative tier 2", decimal.Zero, decimal.NewFromInt(-5)},
		{"tier 2 above 100", decimal.Zero, decimal.NewFromFloat(100.01)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ApplySequentialDiscounts(ctx, base, tt.pct1, tt.pct2, nil)
			if !errors.Is(err, core.ErrInvalidDiscount) {
				t.Errorf("Expected ErrInvalidDiscount, got %v", err)
			}
			if core.KindOf(err) != core.KindValidation {
				t.Errorf("Expected KindValidation, got %v", core.KindOf(err))
			}
		})
	}

	// Boundary values 0 and 100 are legal.
	res, err := engine.ApplySequentialDiscounts(ctx, base, decimal.NewFromInt(100), decimal.Zero, nil)
	if err != nil {
		t.Fatalf("100%% tier-1 discount should be legal: %v", err)
	}
	if !res.FinalAmount.IsZero() {
		t.Errorf("Expected final 0 after 100%% discount, got %s", res.FinalAmount)
	}
}

func TestDiscountEngine_SubCentBaseStaysBounded(t *testing.T) {
	claims := stubClaims{
		7: {ID: 7, IsActive: true, CanReceiveClaims: true},
	}
	engine := core.NewDiscountEngine(claims)
	ctx := context.Background()

	// Rounding a tier to 2dp must never discount more than the base leaves.
	tests := []struct {
		name  string
		base  decimal.Decimal
		pct1  decimal.Decimal
		pct2  decimal.Decimal
		claim *int
	}{
		{"sub-cent base full tier 1", decimal.NewFromFloat(0.005), decimal.NewFromInt(100), decimal.Zero, nil},
		{"sub-cent base full tier 2", decimal.NewFromFloat(0.005), decimal.Zero, decimal.NewFromInt(100), claimID(7)},
		{"sub-cent base both tiers", decimal.NewFromFloat(0.009), decimal.NewFromInt(99), decimal.NewFromInt(99), claimID(7)},
		{"zero base", decimal.Zero, decimal.NewFromInt(100), decimal.NewFromInt(100), claimID(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.ApplySequentialDiscounts(ctx, tt.base, tt.pct1, tt.pct2, tt.claim)
			if err != nil {
				t.Fatalf("ApplySequentialDiscounts failed: %v", err)
			}
			total := res.Discount1Amount.Add(res.Discount2Amount)
			if total.GreaterThan(tt.base) {
				t.Errorf("Discount total %s exceeds base %s", total, tt.base)
			}
			if res.FinalAmount.IsNegative() {
				t.Errorf("Expected non-negative final amount, got %s", res.FinalAmount)
			}
			if !tt.base.Sub(total).Equal(res.FinalAmount) {
				t.Errorf("Expected final %s, got %s", tt.base.Sub(total), res.FinalAmount)
			}
		})
	}
}

func TestDiscountEngine_ClaimAccountGates(t *testing.T) {
	claims := stubClaims{
		1: {ID: 1, Code: "6300", IsActive: true, CanReceiveClaims: true},
		2: {ID: 2, Code: "6301", IsActive: false, CanReceiveClaims: true},
		3: {ID: 3, Code: "4000", IsActive: true, CanReceiveClaims: false},
	}
	engine := core.NewDiscountEngine(claims)
	ctx := context.Background()
	base := decimal.NewFromInt(1000)
	five := decimal.NewFromInt(5)

	tests := []struct {
		name    string
		claim   *int
		wantErr error
	}{
		{"missing claim account", nil, core.ErrClaimAccountInvalid},
		{"unknown claim account", claimID(99), core.ErrClaimAccountNotFound},
		{"inactive claim account", claimID(2), core.ErrClaimAccountInactive},
		{"non-claim account", claimID(3), core.ErrClaimAccountInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ApplySequentialDiscounts(ctx, base, decimal.Zero, five, tt.claim)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// Valid claim account passes.
	if _, err := engine.ApplySequentialDiscounts(ctx, base, decimal.Zero, five, claimID(1)); err != nil {
		t.Errorf("Expected tier-2 with valid claim account to pass, got %v", err)
	}

	// Zero tier 2 needs no claim account at all.
	if _, err := engine.ApplySequentialDiscounts(ctx, base, five, decimal.Zero, nil); err != nil {
		t.Errorf("Expected tier-1-only discount without claim account to pass, got %v", err)
	}
}
