package tax

import (
	"sort"

	"github.com/shopspring/decimal"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// RoundingPolicy controls whether the invoice grand total is rounded to a whole currency unit.
type RoundingPolicy int

const (
	NoRounding RoundingPolicy = iota
	NearestUnit
)

type LineInput struct {
	UnitPrice       decimal.Decimal
	Quantity        int
	DiscountPercent decimal.Decimal
	GSTRate         decimal.Decimal
	Policy          domain.TaxPolicy
}

type LineTax struct {
	LineTotal      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	FinalAmount    decimal.Decimal
}

type InvoiceTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	RoundOff       decimal.Decimal
	GrandTotal     decimal.Decimal
}

func (t InvoiceTotals) TotalTax() decimal.Decimal {
	return t.CGST.Add(t.SGST).Add(t.IGST)
}

// RateSummary is the sum of all lines taxed at one GST rate.
type RateSummary struct {
	GSTRate       decimal.Decimal
	TaxableAmount decimal.Decimal
	CGST          decimal.Decimal
	SGST          decimal.Decimal
	IGST          decimal.Decimal
}

// round2 rounds half away from zero to two decimal places. All amounts here are non-negative,
// so this is half-up.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func validate(in LineInput) error {
	var details []apperrors.ValidationDetail

	if in.Quantity <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be greater than zero"})
	}
	if in.UnitPrice.IsNegative() {
		details = append(details, apperrors.ValidationDetail{Field: "unitPrice", Message: "unitPrice must be non-negative"})
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		details = append(details, apperrors.ValidationDetail{Field: "discountPercent", Message: "discountPercent must be between 0 and 100"})
	}
	if in.GSTRate.IsNegative() {
		details = append(details, apperrors.ValidationDetail{Field: "gstRate", Message: "gstRate must be non-negative"})
	}
	if !in.Policy.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "taxPolicy", Message: "taxPolicy must be INTRA_STATE or INTER_STATE"})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("invalid line", details...)
	}
	return nil
}

// ComputeLine returns the tax breakdown for a single invoice line.
func ComputeLine(in LineInput) (LineTax, error) {
	if err := validate(in); err != nil {
		return LineTax{}, err
	}

	lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	discount := round2(lineTotal.Mul(in.DiscountPercent).Div(hundred))
	taxable := lineTotal.Sub(discount)
	taxAmount := round2(taxable.Mul(in.GSTRate).Div(hundred))

	out := LineTax{
		LineTotal:      lineTotal,
		DiscountAmount: discount,
		TaxableAmount:  taxable,
		TaxAmount:      taxAmount,
		CGST:           decimal.Zero,
		SGST:           decimal.Zero,
		IGST:           decimal.Zero,
	}

	switch in.Policy {
	case domain.TaxInterState:
		out.IGST = taxAmount
	default:
		// sgst absorbs the rounding remainder so cgst+sgst == taxAmount exactly
		out.CGST = round2(taxAmount.Div(two))
		out.SGST = taxAmount.Sub(out.CGST)
	}

	out.FinalAmount = taxable.Add(out.CGST).Add(out.SGST).Add(out.IGST)
	return out, nil
}

// Aggregate sums line values exactly. The only invoice-level rounding is the roundOff
// correction applied once under NearestUnit.
func Aggregate(lines []LineTax, policy RoundingPolicy) InvoiceTotals {
	totals := InvoiceTotals{
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxableAmount:  decimal.Zero,
		CGST:           decimal.Zero,
		SGST:           decimal.Zero,
		IGST:           decimal.Zero,
		RoundOff:       decimal.Zero,
	}

	for _, l := range lines {
		totals.Subtotal = totals.Subtotal.Add(l.LineTotal)
		totals.DiscountAmount = totals.DiscountAmount.Add(l.DiscountAmount)
		totals.TaxableAmount = totals.TaxableAmount.Add(l.TaxableAmount)
		totals.CGST = totals.CGST.Add(l.CGST)
		totals.SGST = totals.SGST.Add(l.SGST)
		totals.IGST = totals.IGST.Add(l.IGST)
	}

	exact := totals.TaxableAmount.Add(totals.TotalTax())
	if policy == NearestUnit {
		totals.RoundOff = exact.Round(0).Sub(exact)
	}
	totals.GrandTotal = exact.Add(totals.RoundOff)

	return totals
}

// RateLine pairs a computed line with the GST rate it was taxed at.
type RateLine struct {
	GSTRate decimal.Decimal
	Tax     LineTax
}

// Breakdown groups lines by GST rate, ordered by ascending rate.
func Breakdown(lines []RateLine) []RateSummary {
	byRate := make(map[string]*RateSummary)
	var keys []decimal.Decimal

	for _, l := range lines {
		key := l.GSTRate.StringFixed(2)
		summary, ok := byRate[key]
		if !ok {
			summary = &RateSummary{
				GSTRate:       l.GSTRate,
				TaxableAmount: decimal.Zero,
				CGST:          decimal.Zero,
				SGST:          decimal.Zero,
				IGST:          decimal.Zero,
			}
			byRate[key] = summary
			keys = append(keys, l.GSTRate)
		}
		summary.TaxableAmount = summary.TaxableAmount.Add(l.Tax.TaxableAmount)
		summary.CGST = summary.CGST.Add(l.Tax.CGST)
		summary.SGST = summary.SGST.Add(l.Tax.SGST)
		summary.IGST = summary.IGST.Add(l.Tax.IGST)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].LessThan(keys[j]) })

	out := make([]RateSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byRate[k.StringFixed(2)])
	}
	return out
}
