package core

// AggregateTotals folds processed lines into invoice-level totals:
//
//	GrandTotal = Subtotal - Discount1Total - Discount2Total + TaxTotal
//
// Deterministic, no I/O. Callers must re-run it whenever lines change, which
// is only permitted while the invoice is draft.
func AggregateTotals(lines []ProcessedLine) Totals {
	var t Totals
	for _, line := range lines {
		t.Subtotal = t.Subtotal.Add(line.Subtotal)
		t.Discount1Total = t.Discount1Total.Add(line.Discount1Amount)
		t.Discount2Total = t.Discount2Total.Add(line.Discount2Amount)
		t.TaxTotal = t.TaxTotal.Add(line.TaxAmount)
		t.GrandTotal = t.GrandTotal.Add(line.LineTotal)
	}
	return t
}
