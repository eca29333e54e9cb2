package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies a ledger account.
type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
)

type Company struct {
	ID           int    `json:"id"`
	CompanyCode  string `json:"company_code"`
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
}

// ProposalLine is a single debit or credit line of a journal proposal.
// Amount is always positive; direction comes from IsDebit.
type ProposalLine struct {
	AccountCode string          `json:"account_code"`
	IsDebit     bool            `json:"is_debit"`
	Amount      decimal.Decimal `json:"amount"`
}

// Proposal is a balanced journal entry built by the Ledger Bridge from a
// committed bill, payment or vendor credit.
// All lines share the header currency and exchange rate.
type Proposal struct {
	DocumentTypeCode    string          `json:"document_type_code"`
	CompanyID           int             `json:"company_id"`
	IdempotencyKey      string          `json:"idempotency_key"`
	TransactionCurrency string          `json:"transaction_currency"`
	ExchangeRate        decimal.Decimal `json:"exchange_rate"`
	Summary             string          `json:"summary"`
	PostingDate         time.Time       `json:"posting_date"`
	DocumentDate        time.Time       `json:"document_date"`
	ReferenceType       string          `json:"reference_type"`
	ReferenceID         string          `json:"reference_id"`
	Lines               []ProposalLine  `json:"lines"`
}

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusPosted    DocumentStatus = "POSTED"
	DocumentStatusCancelled DocumentStatus = "CANCELLED"
)

type DocumentType struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	NumberingStrategy string `json:"numbering_strategy"` // 'global', 'per_fy', 'per_branch'
	ResetsEveryFY     bool   `json:"resets_every_fy"`
}

type Document struct {
	ID             int            `json:"id"`
	CompanyID      int            `json:"company_id"`
	TypeCode       string         `json:"type_code"`
	Status         DocumentStatus `json:"status"`
	DocumentNumber *string        `json:"document_number,omitempty"`
	FinancialYear  *int           `json:"financial_year,omitempty"`
	BranchID       *int           `json:"branch_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	PostedAt       *time.Time     `json:"posted_at,omitempty"`
}
