package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineInput is one bill or vendor credit line as submitted by the caller.
type LineInput struct {
	Description     string           `json:"description"`
	Quantity        decimal.Decimal  `json:"qty"`
	Unit            string           `json:"unit"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Discount        *decimal.Decimal `json:"discount,omitempty"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty"`
	GLAccountID     *int             `json:"gl_account_id,omitempty"`
	ProjectRef      *string          `json:"project_ref,omitempty"`
	InventoryItemID *int             `json:"inventory_item_id,omitempty"`
}

// ComputedLine is a validated line with its derived amounts.
type ComputedLine struct {
	LineInput
	LineNumber int             `json:"line_number"`
	Net        decimal.Decimal `json:"net"`
	Tax        decimal.Decimal `json:"tax"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// Totals are document header amounts. Total always equals Subtotal + Tax.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func decOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// ComputeLine derives net, tax and total for one line:
// net = qty*price - discount, tax = net*rate/100 when rate > 0.
func ComputeLine(in LineInput) ComputedLine {
	discount := decOrZero(in.Discount)
	rate := decOrZero(in.TaxRate)

	net := in.Quantity.Mul(in.UnitPrice).Sub(discount).Round(2)
	tax := decimal.Zero
	if rate.IsPositive() {
		tax = net.Mul(rate).Div(hundred).Round(2)
	}
	return ComputedLine{
		LineInput: in,
		Net:       net,
		Tax:       tax,
		LineTotal: net.Add(tax),
	}
}

// ComputeLines validates and prices every line and returns header totals.
// Line numbers are assigned from 1 in input order.
func ComputeLines(lines []LineInput) ([]ComputedLine, Totals, error) {
	out := make([]ComputedLine, 0, len(lines))
	var totals Totals
	for i, in := range lines {
		if strings.TrimSpace(in.Description) == "" {
			return nil, Totals{}, invalid("lines", "line %d: description is required", i+1)
		}
		if !in.Quantity.IsPositive() {
			return nil, Totals{}, invalid("lines", "line %d: qty must be greater than zero", i+1)
		}
		if in.UnitPrice.IsNegative() {
			return nil, Totals{}, invalid("lines", "line %d: unit_price must not be negative", i+1)
		}
		if decOrZero(in.Discount).IsNegative() {
			return nil, Totals{}, invalid("lines", "line %d: discount must not be negative", i+1)
		}
		if decOrZero(in.TaxRate).IsNegative() {
			return nil, Totals{}, invalid("lines", "line %d: tax_rate must not be negative", i+1)
		}

		cl := ComputeLine(in)
		if cl.Net.IsNegative() {
			return nil, Totals{}, invalid("lines", "line %d: discount exceeds line amount", i+1)
		}
		cl.LineNumber = i + 1
		out = append(out, cl)

		totals.Subtotal = totals.Subtotal.Add(cl.Net)
		totals.Tax = totals.Tax.Add(cl.Tax)
	}
	totals.Total = totals.Subtotal.Add(totals.Tax)
	return out, totals, nil
}

// ResolveHeaderTotals reconciles caller-supplied header amounts with the line
// totals. Omitted subtotal and tax come from the lines; with no lines tax
// defaults to zero and subtotal to total - tax. The result must satisfy
// total = subtotal + tax.
func ResolveHeaderTotals(subtotal, tax *decimal.Decimal, total decimal.Decimal, fromLines Totals, hasLines bool) (Totals, error) {
	if !total.IsPositive() {
		return Totals{}, invalid("total", "must be greater than zero")
	}
	t := Totals{Total: total.Round(2)}

	switch {
	case tax != nil:
		t.Tax = tax.Round(2)
	case hasLines:
		t.Tax = fromLines.Tax
	}
	if t.Tax.IsNegative() {
		return Totals{}, invalid("tax", "must not be negative")
	}

	switch {
	case subtotal != nil:
		t.Subtotal = subtotal.Round(2)
	case hasLines:
		t.Subtotal = fromLines.Subtotal
	default:
		t.Subtotal = t.Total.Sub(t.Tax)
	}

	if !t.Subtotal.Add(t.Tax).Equal(t.Total) {
		return Totals{}, invalid("total", "total %s must equal subtotal %s + tax %s",
			t.Total.StringFixed(2), t.Subtotal.StringFixed(2), t.Tax.StringFixed(2))
	}
	return t, nil
}
