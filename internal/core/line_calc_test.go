package core_test

import (
	"errors"
	"testing"

	"ap-settlement/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestComputeLine(t *testing.T) {
	tests := []struct {
		name      string
		in        core.LineInput
		net, tax  string
		lineTotal string
	}{
		{
			name: "plain",
			in:   core.LineInput{Description: "Widgets", Quantity: d("10"), UnitPrice: d("12.50")},
			net:  "125", tax: "0", lineTotal: "125",
		},
		{
			name: "discount and tax",
			in:   core.LineInput{Description: "Widgets", Quantity: d("4"), UnitPrice: d("25"), Discount: dp("10"), TaxRate: dp("18")},
			net:  "90", tax: "16.2", lineTotal: "106.2",
		},
		{
			name: "tax rounds to cents",
			in:   core.LineInput{Description: "Bolts", Quantity: d("3"), UnitPrice: d("3.33"), TaxRate: dp("7.5")},
			net:  "9.99", tax: "0.75", lineTotal: "10.74",
		},
		{
			name: "zero rate adds no tax",
			in:   core.LineInput{Description: "Service", Quantity: d("1"), UnitPrice: d("100"), TaxRate: dp("0")},
			net:  "100", tax: "0", lineTotal: "100",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := core.ComputeLine(tt.in)
			assert.True(t, cl.Net.Equal(d(tt.net)), "net = %s", cl.Net)
			assert.True(t, cl.Tax.Equal(d(tt.tax)), "tax = %s", cl.Tax)
			assert.True(t, cl.LineTotal.Equal(d(tt.lineTotal)), "line total = %s", cl.LineTotal)
		})
	}
}

func TestComputeLines_TotalsAndNumbering(t *testing.T) {
	lines, totals, err := core.ComputeLines([]core.LineInput{
		{Description: "A", Quantity: d("2"), UnitPrice: d("50"), TaxRate: dp("10")},
		{Description: "B", Quantity: d("1"), UnitPrice: d("300"), Discount: dp("100")},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, 1, lines[0].LineNumber)
	assert.Equal(t, 2, lines[1].LineNumber)
	assert.True(t, totals.Subtotal.Equal(d("300")), "subtotal = %s", totals.Subtotal)
	assert.True(t, totals.Tax.Equal(d("10")), "tax = %s", totals.Tax)
	assert.True(t, totals.Total.Equal(d("310")), "total = %s", totals.Total)
}

func TestComputeLines_Rejects(t *testing.T) {
	tests := []struct {
		name string
		line core.LineInput
	}{
		{"missing description", core.LineInput{Quantity: d("1"), UnitPrice: d("1")}},
		{"zero qty", core.LineInput{Description: "x", Quantity: d("0"), UnitPrice: d("1")}},
		{"negative price", core.LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("-1")}},
		{"negative discount", core.LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("1"), Discount: dp("-1")}},
		{"discount above gross", core.LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("10"), Discount: dp("11")}},
		{"negative tax rate", core.LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("1"), TaxRate: dp("-5")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := core.ComputeLines([]core.LineInput{tt.line})
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrValidation))
		})
	}
}

func TestResolveHeaderTotals(t *testing.T) {
	fromLines := core.Totals{Subtotal: d("900"), Tax: d("100"), Total: d("1000")}

	t.Run("computed from lines", func(t *testing.T) {
		got, err := core.ResolveHeaderTotals(nil, nil, d("1000"), fromLines, true)
		require.NoError(t, err)
		assert.True(t, got.Subtotal.Equal(d("900")))
		assert.True(t, got.Tax.Equal(d("100")))
	})

	t.Run("no lines derives subtotal", func(t *testing.T) {
		got, err := core.ResolveHeaderTotals(nil, dp("50"), d("1000"), core.Totals{}, false)
		require.NoError(t, err)
		assert.True(t, got.Subtotal.Equal(d("950")))
		assert.True(t, got.Tax.Equal(d("50")))
	})

	t.Run("explicit header wins", func(t *testing.T) {
		got, err := core.ResolveHeaderTotals(dp("800"), dp("200"), d("1000"), fromLines, true)
		require.NoError(t, err)
		assert.True(t, got.Subtotal.Equal(d("800")))
	})

	t.Run("total must equal subtotal plus tax", func(t *testing.T) {
		_, err := core.ResolveHeaderTotals(dp("800"), dp("100"), d("1000"), fromLines, true)
		require.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("lines disagreeing with total", func(t *testing.T) {
		_, err := core.ResolveHeaderTotals(nil, nil, d("1200"), fromLines, true)
		require.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("non-positive total", func(t *testing.T) {
		_, err := core.ResolveHeaderTotals(nil, nil, d("0"), core.Totals{}, false)
		require.ErrorIs(t, err, core.ErrValidation)
	})
}
