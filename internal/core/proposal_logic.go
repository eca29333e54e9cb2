package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize fills header defaults before validation.
func (p *Proposal) Normalize() {
	p.TransactionCurrency = strings.ToUpper(strings.TrimSpace(p.TransactionCurrency))
	if p.DocumentDate.IsZero() {
		p.DocumentDate = p.PostingDate
	}
	if !p.ExchangeRate.IsPositive() {
		p.ExchangeRate = decimal.NewFromInt(1)
	}
}

// Validate enforces double-entry rules on the proposal.
// All lines share the header currency, so balance is checked in base amounts.
func (p *Proposal) Validate() error {
	if p.DocumentTypeCode == "" {
		return errors.New("proposal must specify a document type code")
	}
	if p.CompanyID == 0 {
		return errors.New("proposal must specify a company")
	}
	if p.TransactionCurrency == "" {
		return errors.New("proposal must specify a transaction currency")
	}
	if p.PostingDate.IsZero() {
		return errors.New("proposal must specify a posting date")
	}
	if !p.ExchangeRate.IsPositive() {
		return fmt.Errorf("exchange rate must be > 0, got %s", p.ExchangeRate)
	}
	if len(p.Lines) < 2 {
		return errors.New("transaction must have at least 2 lines")
	}

	totalDebitBase := decimal.Zero
	totalCreditBase := decimal.Zero
	for _, line := range p.Lines {
		if line.AccountCode == "" {
			return errors.New("proposal line must specify an account code")
		}
		if !line.Amount.IsPositive() {
			return fmt.Errorf("amount must be > 0 for account %s", line.AccountCode)
		}
		baseAmt := line.Amount.Mul(p.ExchangeRate).Round(2)
		if line.IsDebit {
			totalDebitBase = totalDebitBase.Add(baseAmt)
		} else {
			totalCreditBase = totalCreditBase.Add(baseAmt)
		}
	}

	if !totalDebitBase.Equal(totalCreditBase) {
		return fmt.Errorf("base currency imbalance: debits %s != credits %s", totalDebitBase, totalCreditBase)
	}
	return nil
}

// lineBuilder accumulates amounts per (account, side) and emits proposal lines
// in a stable order: debits first, then credits, each by account code.
type lineBuilder struct {
	debits  map[string]decimal.Decimal
	credits map[string]decimal.Decimal
}

func newLineBuilder() *lineBuilder {
	return &lineBuilder{
		debits:  make(map[string]decimal.Decimal),
		credits: make(map[string]decimal.Decimal),
	}
}

func (b *lineBuilder) debit(code string, amt decimal.Decimal) {
	if amt.IsPositive() {
		b.debits[code] = b.debits[code].Add(amt)
	}
}

func (b *lineBuilder) credit(code string, amt decimal.Decimal) {
	if amt.IsPositive() {
		b.credits[code] = b.credits[code].Add(amt)
	}
}

func (b *lineBuilder) lines() []ProposalLine {
	out := make([]ProposalLine, 0, len(b.debits)+len(b.credits))
	out = append(out, sortedLines(b.debits, true)...)
	return append(out, sortedLines(b.credits, false)...)
}

func sortedLines(m map[string]decimal.Decimal, isDebit bool) []ProposalLine {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]ProposalLine, 0, len(codes))
	for _, code := range codes {
		out = append(out, ProposalLine{AccountCode: code, IsDebit: isDebit, Amount: m[code].Round(2)})
	}
	return out
}
