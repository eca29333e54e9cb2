package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Goods received note statuses.
const (
	GRNStatusReceived  = "RECEIVED"
	GRNStatusCancelled = "CANCELLED"
)

// GoodsReceipt is a goods received note recorded against an approved PO.
type GoodsReceipt struct {
	ID           int        `json:"id"`
	CompanyID    int        `json:"company_id"`
	SupplierID   int        `json:"supplier_id"`
	POID         int        `json:"po_id"`
	GRNNumber    string     `json:"grn_number"`
	ReceivedDate time.Time  `json:"received_date"`
	Status       string     `json:"status"`
	Notes        *string    `json:"notes,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Lines        []GRNLine  `json:"lines,omitempty"`
}

// GRNLine is the quantity received for one PO line.
type GRNLine struct {
	ID          int             `json:"id"`
	GRNID       int             `json:"grn_id"`
	POLineID    int             `json:"po_line_id"`
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	QtyReceived decimal.Decimal `json:"qty_received"`
}

// ReceivedLine represents one PO line being received.
type ReceivedLine struct {
	POLineID    int             `json:"po_line_id"`
	QtyReceived decimal.Decimal `json:"qty_received"`
}

// GoodsReceiptInput is a request to receive goods against a PO.
type GoodsReceiptInput struct {
	POID         int            `json:"po_id"`
	ReceivedDate time.Time      `json:"received_date"`
	Notes        string         `json:"notes,omitempty"`
	Lines        []ReceivedLine `json:"lines"`
}

// GoodsReceiptService records goods received against purchase orders.
type GoodsReceiptService interface {
	// CreateGRN records a receipt against an APPROVED purchase order. The
	// cumulative received quantity of each PO line may not exceed the ordered
	// quantity; lines are checked under row locks.
	CreateGRN(ctx context.Context, companyID int, input GoodsReceiptInput) (*GoodsReceipt, error)

	// CancelGRN cancels a receipt whose lines have not been matched.
	CancelGRN(ctx context.Context, companyID, grnID int) error

	// GetGRN returns a receipt with its lines.
	GetGRN(ctx context.Context, companyID, grnID int) (*GoodsReceipt, error)

	// ListGRNs returns receipts newest first. poID 0 lists all.
	ListGRNs(ctx context.Context, companyID, poID int) ([]GoodsReceipt, error)
}
