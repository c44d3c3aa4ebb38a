package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

func TestComputeLine_IntraState(t *testing.T) {
	got, err := ComputeLine(LineInput{
		UnitPrice:       d("100.00"),
		Quantity:        3,
		DiscountPercent: decimal.Zero,
		GSTRate:         d("18"),
		Policy:          domain.TaxIntraState,
	})
	require.NoError(t, err)

	assertDecimal(t, "300.00", got.LineTotal, "lineTotal")
	assertDecimal(t, "0", got.DiscountAmount, "discountAmount")
	assertDecimal(t, "300.00", got.TaxableAmount, "taxableAmount")
	assertDecimal(t, "54.00", got.TaxAmount, "taxAmount")
	assertDecimal(t, "27.00", got.CGST, "cgst")
	assertDecimal(t, "27.00", got.SGST, "sgst")
	assertDecimal(t, "0", got.IGST, "igst")
	assertDecimal(t, "354.00", got.FinalAmount, "finalAmount")
}

func TestComputeLine_InterState(t *testing.T) {
	got, err := ComputeLine(LineInput{
		UnitPrice: d("100.00"),
		Quantity:  3,
		GSTRate:   d("18"),
		Policy:    domain.TaxInterState,
	})
	require.NoError(t, err)

	assertDecimal(t, "0", got.CGST, "cgst")
	assertDecimal(t, "0", got.SGST, "sgst")
	assertDecimal(t, "54.00", got.IGST, "igst")
	assertDecimal(t, "354.00", got.FinalAmount, "finalAmount")
}

func TestComputeLine_OddTaxSplitHasNoLeak(t *testing.T) {
	// 10.10 at 5% gives 0.505 -> 0.51, which splits 0.26 / 0.25.
	got, err := ComputeLine(LineInput{
		UnitPrice: d("10.10"),
		Quantity:  1,
		GSTRate:   d("5"),
		Policy:    domain.TaxIntraState,
	})
	require.NoError(t, err)

	assertDecimal(t, "0.51", got.TaxAmount, "taxAmount")
	assertDecimal(t, "0.26", got.CGST, "cgst")
	assertDecimal(t, "0.25", got.SGST, "sgst")
	assert.True(t, got.CGST.Add(got.SGST).Equal(got.TaxAmount))
}

func TestComputeLine_DiscountRoundsHalfUp(t *testing.T) {
	got, err := ComputeLine(LineInput{
		UnitPrice:       d("33.33"),
		Quantity:        1,
		DiscountPercent: d("7.5"),
		GSTRate:         d("12"),
		Policy:          domain.TaxIntraState,
	})
	require.NoError(t, err)

	// 33.33 * 7.5% = 2.49975 -> 2.50
	assertDecimal(t, "2.50", got.DiscountAmount, "discountAmount")
	assertDecimal(t, "30.83", got.TaxableAmount, "taxableAmount")
	// 30.83 * 12% = 3.6996 -> 3.70
	assertDecimal(t, "3.70", got.TaxAmount, "taxAmount")
	assertDecimal(t, "1.85", got.CGST, "cgst")
	assertDecimal(t, "1.85", got.SGST, "sgst")
	assertDecimal(t, "34.53", got.FinalAmount, "finalAmount")
}

func TestComputeLine_Identities(t *testing.T) {
	prices := []string{"0.01", "0.99", "9.95", "19.99", "100.00", "249.50", "1234.56"}
	rates := []string{"0", "5", "12", "18", "28"}
	discounts := []string{"0", "2.5", "10", "33.33", "100"}

	for _, price := range prices {
		for _, rate := range rates {
			for _, disc := range discounts {
				for qty := 1; qty <= 7; qty += 3 {
					for _, policy := range []domain.TaxPolicy{domain.TaxIntraState, domain.TaxInterState} {
						got, err := ComputeLine(LineInput{
							UnitPrice:       d(price),
							Quantity:        qty,
							DiscountPercent: d(disc),
							GSTRate:         d(rate),
							Policy:          policy,
						})
						require.NoError(t, err)

						tax := got.CGST.Add(got.SGST).Add(got.IGST)
						assert.True(t, got.FinalAmount.Equal(got.TaxableAmount.Add(tax)))
						assert.True(t, tax.Equal(got.TaxAmount))
						assert.True(t, got.TaxableAmount.Equal(got.LineTotal.Sub(got.DiscountAmount)))
						assert.False(t, got.TaxableAmount.IsNegative())
					}
				}
			}
		}
	}
}

func TestComputeLine_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input LineInput
		field string
	}{
		{name: "zero quantity", input: LineInput{UnitPrice: d("1"), Quantity: 0, Policy: domain.TaxIntraState}, field: "quantity"},
		{name: "negative price", input: LineInput{UnitPrice: d("-1"), Quantity: 1, Policy: domain.TaxIntraState}, field: "unitPrice"},
		{name: "discount over 100", input: LineInput{UnitPrice: d("1"), Quantity: 1, DiscountPercent: d("100.01"), Policy: domain.TaxIntraState}, field: "discountPercent"},
		{name: "negative rate", input: LineInput{UnitPrice: d("1"), Quantity: 1, GSTRate: d("-5"), Policy: domain.TaxIntraState}, field: "gstRate"},
		{name: "missing policy", input: LineInput{UnitPrice: d("1"), Quantity: 1}, field: "taxPolicy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeLine(tt.input)
			ve, ok := apperrors.IsValidationError(err)
			require.True(t, ok)
			require.Len(t, ve.Details, 1)
			assert.Equal(t, tt.field, ve.Details[0].Field)
		})
	}
}

func TestAggregate(t *testing.T) {
	a, err := ComputeLine(LineInput{UnitPrice: d("100.00"), Quantity: 3, GSTRate: d("18"), Policy: domain.TaxIntraState})
	require.NoError(t, err)
	b, err := ComputeLine(LineInput{UnitPrice: d("49.99"), Quantity: 1, DiscountPercent: d("10"), GSTRate: d("5"), Policy: domain.TaxIntraState})
	require.NoError(t, err)

	totals := Aggregate([]LineTax{a, b}, NoRounding)

	assertDecimal(t, "349.99", totals.Subtotal, "subtotal")
	assertDecimal(t, "5.00", totals.DiscountAmount, "discountAmount")
	assertDecimal(t, "344.99", totals.TaxableAmount, "taxableAmount")
	assertDecimal(t, "0", totals.RoundOff, "roundOff")
	assert.True(t, totals.GrandTotal.Equal(totals.TaxableAmount.Add(totals.TotalTax()).Add(totals.RoundOff)))
	assert.True(t, totals.GrandTotal.Equal(a.FinalAmount.Add(b.FinalAmount)))
}

func TestAggregate_NearestUnit(t *testing.T) {
	a, err := ComputeLine(LineInput{UnitPrice: d("49.99"), Quantity: 1, DiscountPercent: d("10"), GSTRate: d("5"), Policy: domain.TaxIntraState})
	require.NoError(t, err)

	totals := Aggregate([]LineTax{a}, NearestUnit)

	// 44.99 + 2.25 = 47.24 -> 47
	assertDecimal(t, "47.24", a.FinalAmount, "finalAmount")
	assertDecimal(t, "-0.24", totals.RoundOff, "roundOff")
	assertDecimal(t, "47", totals.GrandTotal, "grandTotal")
	assert.True(t, totals.GrandTotal.Equal(totals.TaxableAmount.Add(totals.TotalTax()).Add(totals.RoundOff)))
}

func TestAggregate_Empty(t *testing.T) {
	totals := Aggregate(nil, NearestUnit)
	assert.True(t, totals.GrandTotal.IsZero())
	assert.True(t, totals.RoundOff.IsZero())
}

func TestBreakdown(t *testing.T) {
	a, _ := ComputeLine(LineInput{UnitPrice: d("100.00"), Quantity: 1, GSTRate: d("18"), Policy: domain.TaxIntraState})
	b, _ := ComputeLine(LineInput{UnitPrice: d("10.00"), Quantity: 2, GSTRate: d("5"), Policy: domain.TaxIntraState})
	c, _ := ComputeLine(LineInput{UnitPrice: d("50.00"), Quantity: 1, GSTRate: d("18.00"), Policy: domain.TaxIntraState})

	summary := Breakdown([]RateLine{
		{GSTRate: d("18"), Tax: a},
		{GSTRate: d("5"), Tax: b},
		{GSTRate: d("18.00"), Tax: c},
	})

	require.Len(t, summary, 2)
	assertDecimal(t, "5", summary[0].GSTRate, "rate[0]")
	assertDecimal(t, "20.00", summary[0].TaxableAmount, "taxable[0]")
	assertDecimal(t, "18", summary[1].GSTRate, "rate[1]")
	assertDecimal(t, "150.00", summary[1].TaxableAmount, "taxable[1]")
	assertDecimal(t, "13.50", summary[1].CGST, "cgst[1]")
	assertDecimal(t, "13.50", summary[1].SGST, "sgst[1]")
}
