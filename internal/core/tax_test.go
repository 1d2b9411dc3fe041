package core_test

import (
	"testing"

	"pharma-erp/internal/core"

	"github.com/shopspring/decimal"
)

func TestTaxEngine_CalculateTax(t *testing.T) {
	var engine core.TaxEngine

	tests := []struct {
		name    string
		gstRate decimal.Decimal
		base    decimal.Decimal
		want    decimal.Decimal
	}{
		{"standard rate", decimal.NewFromInt(17), decimal.NewFromInt(1000), decimal.NewFromInt(170)},
		{"rounds to 2dp", decimal.NewFromInt(17), decimal.NewFromFloat(855), decimal.NewFromFloat(145.35)},
		{"zero rate", decimal.Zero, decimal.NewFromInt(1000), decimal.Zero},
		{"zero base", decimal.NewFromInt(17), decimal.Zero, decimal.Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.CalculateTax(core.TaxProfile{GSTRate: tt.gstRate}, tt.base)
			if !got.Equal(tt.want) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTaxEngine_CalculateWithholding(t *testing.T) {
	var engine core.TaxEngine
	profile := core.TaxProfile{WithholdingRate: decimal.NewFromFloat(4.5)}

	got := engine.CalculateWithholding(profile, decimal.NewFromInt(2000))
	if !got.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Expected withholding 90, got %s", got)
	}

	if !engine.CalculateWithholding(core.TaxProfile{}, decimal.NewFromInt(2000)).IsZero() {
		t.Error("Expected zero withholding for empty profile")
	}
}
