package core

import (
	"context"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountResult carries the two tier amounts and the remaining base after
// both discounts.
type DiscountResult struct {
	Discount1Amount decimal.Decimal
	Discount2Amount decimal.Decimal
	FinalAmount     decimal.Decimal
}

// DiscountEngine computes sequential (compounding) discount tiers. Tier 1
// applies to the base amount; tier 2 applies to the post-tier-1 amount. Using
// tier 2 requires an active claim account that is flagged to absorb discount
// claims.
type DiscountEngine struct {
	claims ClaimAccountDirectory
}

func NewDiscountEngine(claims ClaimAccountDirectory) *DiscountEngine {
	return &DiscountEngine{claims: claims}
}

// ApplySequentialDiscounts validates both percentages, checks the claim
// account when tier 2 is used, and returns the computed amounts. Aside from
// the claim-account read this is a pure computation.
func (e *DiscountEngine) ApplySequentialDiscounts(ctx context.Context, baseAmount, pct1, pct2 decimal.Decimal, claimAccountID *int) (DiscountResult, error) {
	if baseAmount.IsNegative() {
		return DiscountResult{}, validationErr(ErrInvalidAmount, "discount base %s is negative", baseAmount)
	}
	if !percentInRange(pct1) {
		return DiscountResult{}, validationErr(ErrInvalidDiscount, "tier-1 percent %s out of range", pct1)
	}
	if !percentInRange(pct2) {
		return DiscountResult{}, validationErr(ErrInvalidDiscount, "tier-2 percent %s out of range", pct2)
	}

	if pct2.IsPositive() {
		if claimAccountID == nil {
			return DiscountResult{}, validationErr(ErrClaimAccountInvalid, "tier-2 discount of %s%% requires a claim account", pct2)
		}
		account, err := e.claims.GetClaimAccount(ctx, *claimAccountID)
		if err != nil {
			return DiscountResult{}, err
		}
		if !account.IsActive {
			return DiscountResult{}, validationErr(ErrClaimAccountInactive, "account %s", account.Code)
		}
		if !account.CanReceiveClaims {
			return DiscountResult{}, validationErr(ErrClaimAccountInvalid, "account %s is not a claim/adjustment account", account.Code)
		}
	}

	// Rounding can push a tier past what remains of a sub-cent base; clamp
	// each tier so the combined discount never exceeds the base and the
	// final amount never goes negative.
	d1 := decimal.Min(baseAmount.Mul(pct1).Div(hundred).Round(2), baseAmount)
	afterTier1 := baseAmount.Sub(d1)
	d2 := decimal.Min(afterTier1.Mul(pct2).Div(hundred).Round(2), afterTier1)

	return DiscountResult{
		Discount1Amount: d1,
		Discount2Amount: d2,
		FinalAmount:     afterTier1.Sub(d2),
	}, nil
}

func percentInRange(pct decimal.Decimal) bool {
	return !pct.IsNegative() && !pct.GreaterThan(hundred)
}
