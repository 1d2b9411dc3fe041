package core

import "github.com/shopspring/decimal"

// TaxEngine computes line taxes from an item's tax profile. The taxable base
// is the amount after all discounts. A missing or zero rate yields zero tax,
// never an error.
type TaxEngine struct{}

// CalculateTax returns the GST amount on the taxable base.
func (TaxEngine) CalculateTax(profile TaxProfile, taxableAmount decimal.Decimal) decimal.Decimal {
	if !profile.GSTRate.IsPositive() || !taxableAmount.IsPositive() {
		return decimal.Zero
	}
	return taxableAmount.Mul(profile.GSTRate).Div(hundred).Round(2)
}

// CalculateWithholding returns the withholding amount on the taxable base.
// Withholding reduces counterparty settlement and is tracked on the line but
// never added to the line total.
func (TaxEngine) CalculateWithholding(profile TaxProfile, taxableAmount decimal.Decimal) decimal.Decimal {
	if !profile.WithholdingRate.IsPositive() || !taxableAmount.IsPositive() {
		return decimal.Zero
	}
	return taxableAmount.Mul(profile.WithholdingRate).Div(hundred).Round(2)
}
