package core_test

import (
	"testing"
	"time"

	"ap-settlement/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProposal_NormalizationAndValidation(t *testing.T) {
	postingDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name             string
		documentTypeCode string
		currency         string
		exchangeRate     decimal.Decimal
		lines            []core.ProposalLine
		expectErr        bool
	}{
		{
			name:             "balanced bill posting",
			documentTypeCode: "PI",
			currency:         "usd",
			lines: []core.ProposalLine{
				{AccountCode: "5000", IsDebit: true, Amount: d("900.00")},
				{AccountCode: "1500", IsDebit: true, Amount: d("100.00")},
				{AccountCode: "2000", IsDebit: false, Amount: d("1000.00")},
			},
		},
		{
			name:             "foreign currency rate applies to both sides",
			documentTypeCode: "PP",
			currency:         "EUR",
			exchangeRate:     d("1.0850"),
			lines: []core.ProposalLine{
				{AccountCode: "2000", IsDebit: true, Amount: d("500.00")},
				{AccountCode: "1000", IsDebit: false, Amount: d("500.00")},
			},
		},
		{
			name:             "unbalanced",
			documentTypeCode: "PI",
			currency:         "USD",
			lines: []core.ProposalLine{
				{AccountCode: "5000", IsDebit: true, Amount: d("100.00")},
				{AccountCode: "2000", IsDebit: false, Amount: d("99.99")},
			},
			expectErr: true,
		},
		{
			name:             "single line",
			documentTypeCode: "PI",
			currency:         "USD",
			lines: []core.ProposalLine{
				{AccountCode: "5000", IsDebit: true, Amount: d("100.00")},
			},
			expectErr: true,
		},
		{
			name:             "zero amount line",
			documentTypeCode: "PP",
			currency:         "USD",
			lines: []core.ProposalLine{
				{AccountCode: "2000", IsDebit: true, Amount: d("0")},
				{AccountCode: "1000", IsDebit: false, Amount: d("0")},
			},
			expectErr: true,
		},
		{
			name:     "missing document type",
			currency: "USD",
			lines: []core.ProposalLine{
				{AccountCode: "2000", IsDebit: true, Amount: d("10")},
				{AccountCode: "1000", IsDebit: false, Amount: d("10")},
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := core.Proposal{
				DocumentTypeCode:    tt.documentTypeCode,
				CompanyID:           1,
				TransactionCurrency: tt.currency,
				ExchangeRate:        tt.exchangeRate,
				PostingDate:         postingDate,
				Lines:               tt.lines,
			}
			p.Normalize()
			err := p.Validate()
			if tt.expectErr && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestProposal_NormalizeDefaults(t *testing.T) {
	posting := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	p := core.Proposal{TransactionCurrency: " usd ", PostingDate: posting}
	p.Normalize()

	if p.TransactionCurrency != "USD" {
		t.Errorf("currency = %q, want USD", p.TransactionCurrency)
	}
	if !p.DocumentDate.Equal(posting) {
		t.Errorf("document date = %v, want posting date", p.DocumentDate)
	}
	if !p.ExchangeRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("exchange rate = %s, want 1", p.ExchangeRate)
	}
}
