package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItemProcessor validates and enriches one raw invoice line into a fully
// computed ProcessedLine. It owns line-level validation; discount and tax
// math is delegated to the engines.
type LineItemProcessor struct {
	catalog   ItemCatalog
	discounts *DiscountEngine
	taxes     TaxEngine
}

func NewLineItemProcessor(catalog ItemCatalog, discounts *DiscountEngine) *LineItemProcessor {
	return &LineItemProcessor{catalog: catalog, discounts: discounts}
}

// Process resolves the item, validates quantities, prices, discount tiers and
// batch dates, then computes subtotal, discounts, tax and the line total.
func (p *LineItemProcessor) Process(ctx context.Context, direction InvoiceDirection, in LineInput) (ProcessedLine, error) {
	item, err := p.catalog.GetItem(ctx, in.ItemID)
	if err != nil {
		return ProcessedLine{}, err
	}
	if !item.IsActive {
		return ProcessedLine{}, validationErr(ErrItemInactive, "item %s", item.Code)
	}

	if !in.Quantity.IsPositive() {
		return ProcessedLine{}, validationErr(ErrInvalidQuantity, "item %s: got %s", item.Code, in.Quantity)
	}

	unitPrice := p.defaultPrice(direction, item)
	if in.UnitPrice != nil {
		unitPrice = *in.UnitPrice
	}
	if unitPrice.IsNegative() {
		return ProcessedLine{}, validationErr(ErrInvalidUnitPrice, "item %s: got %s", item.Code, unitPrice)
	}

	if in.Batch != nil && in.Batch.ManufacturedOn != nil && in.Batch.ExpiresOn != nil {
		if !in.Batch.ExpiresOn.After(*in.Batch.ManufacturedOn) {
			return ProcessedLine{}, validationErr(ErrInvalidBatchDates,
				"item %s batch %s: expiry %s, manufactured %s",
				item.Code, in.Batch.Number,
				in.Batch.ExpiresOn.Format("2006-01-02"), in.Batch.ManufacturedOn.Format("2006-01-02"))
		}
	}

	pct1, pct2 := resolveDiscountTiers(in)

	subtotal := in.Quantity.Mul(unitPrice).Round(2)
	disc, err := p.discounts.ApplySequentialDiscounts(ctx, subtotal, pct1, pct2, in.ClaimAccountID)
	if err != nil {
		return ProcessedLine{}, err
	}

	taxable := disc.FinalAmount
	tax := p.taxes.CalculateTax(item.Tax, taxable)
	withholding := p.taxes.CalculateWithholding(item.Tax, taxable)

	claimID := in.ClaimAccountID
	if !pct2.IsPositive() {
		claimID = nil
	}

	return ProcessedLine{
		ItemID:            item.ID,
		ItemCode:          item.Code,
		ItemName:          item.Name,
		Quantity:          in.Quantity,
		UnitPrice:         unitPrice,
		Subtotal:          subtotal,
		Discount1Pct:      pct1,
		Discount1Amount:   disc.Discount1Amount,
		Discount2Pct:      pct2,
		Discount2Amount:   disc.Discount2Amount,
		ClaimAccountID:    claimID,
		TaxableAmount:     taxable,
		TaxAmount:         tax,
		WithholdingAmount: withholding,
		LineTotal:         taxable.Add(tax),
		Batch:             in.Batch,
	}, nil
}

// defaultPrice picks the catalog price for the invoice direction. Returns use
// the price of their base direction.
func (p *LineItemProcessor) defaultPrice(direction InvoiceDirection, item *Item) decimal.Decimal {
	if direction.BaseDirection() == DirectionPurchase {
		return item.CostPrice
	}
	return item.SalePrice
}

// resolveDiscountTiers maps the three discount input fields onto the two
// tiers. A legacy single discount is reinterpreted as tier 1 only when both
// tier fields are unset.
func resolveDiscountTiers(in LineInput) (pct1, pct2 decimal.Decimal) {
	if in.Discount1Pct == nil && in.Discount2Pct == nil && in.LegacyDiscountPct != nil {
		return *in.LegacyDiscountPct, decimal.Zero
	}
	if in.Discount1Pct != nil {
		pct1 = *in.Discount1Pct
	}
	if in.Discount2Pct != nil {
		pct2 = *in.Discount2Pct
	}
	return pct1, pct2
}
