package app

import (
	"ap-settlement/internal/core"

	"github.com/shopspring/decimal"
)

// Dates in requests are YYYY-MM-DD strings; CompanyCode comes from the route.

// CreateSupplierRequest is the input for creating a supplier.
type CreateSupplierRequest struct {
	CompanyCode string `json:"-"`
	core.SupplierInput
}

// BillHeaderInput is the header of a CreateBillRequest.
type BillHeaderInput struct {
	SupplierID    int              `json:"supplier_id"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceDate   string           `json:"invoice_date"`
	DueDate       string           `json:"due_date,omitempty"`
	Currency      string           `json:"currency"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty"`
	Tax           *decimal.Decimal `json:"tax,omitempty"`
	Total         decimal.Decimal  `json:"total"`
}

// CreateBillRequest is the input for recording a supplier bill.
type CreateBillRequest struct {
	CompanyCode string           `json:"-"`
	Header      BillHeaderInput  `json:"header"`
	Lines       []core.LineInput `json:"lines"`
}

// CreatePaymentRequest is the input for paying a supplier across bills.
type CreatePaymentRequest struct {
	CompanyCode   string            `json:"-"`
	SupplierID    int               `json:"supplier_id"`
	PaymentDate   string            `json:"payment_date"`
	BankAccountID *int              `json:"bank_account_id,omitempty"`
	Method        string            `json:"method"`
	Reference     *string           `json:"reference,omitempty"`
	Allocations   []core.Allocation `json:"allocations"`
}

// VendorCreditHeaderInput is the header of a CreateVendorCreditRequest.
type VendorCreditHeaderInput struct {
	SupplierID   int    `json:"supplier_id"`
	CreditNumber string `json:"credit_number"`
	CreditDate   string `json:"credit_date"`
	Currency     string `json:"currency"`
	Notes        string `json:"notes,omitempty"`
}

// CreateVendorCreditRequest is the input for recording a vendor credit.
type CreateVendorCreditRequest struct {
	CompanyCode string                  `json:"-"`
	Header      VendorCreditHeaderInput `json:"header"`
	Lines       []core.LineInput        `json:"lines"`
}

// ApplyVendorCreditRequest allocates a credit across bills.
type ApplyVendorCreditRequest struct {
	CompanyCode string            `json:"-"`
	CreditID    int               `json:"credit_id"`
	Allocations []core.Allocation `json:"allocations"`
}

// CreatePurchaseOrderRequest is the input for creating a DRAFT purchase order.
type CreatePurchaseOrderRequest struct {
	CompanyCode          string                        `json:"-"`
	SupplierID           int                           `json:"supplier_id"`
	PODate               string                        `json:"po_date"`
	ExpectedDeliveryDate string                        `json:"expected_delivery_date,omitempty"`
	Currency             string                        `json:"currency"`
	Notes                string                        `json:"notes,omitempty"`
	Lines                []core.PurchaseOrderLineInput `json:"lines"`
}

// ReceiveGoodsRequest records goods received against an APPROVED purchase order.
type ReceiveGoodsRequest struct {
	CompanyCode  string              `json:"-"`
	POID         int                 `json:"po_id"`
	ReceivedDate string              `json:"received_date"`
	Notes        string              `json:"notes,omitempty"`
	Lines        []core.ReceivedLine `json:"lines"`
}

// ApplyMatchesRequest is a batch of three-way match candidates.
type ApplyMatchesRequest struct {
	CompanyCode string            `json:"-"`
	Matches     []core.MatchInput `json:"matches"`
}
