package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order statuses.
const (
	POStatusDraft     = "DRAFT"
	POStatusApproved  = "APPROVED"
	POStatusCancelled = "CANCELLED"
)

// PurchaseOrder represents a purchase order header.
type PurchaseOrder struct {
	ID                   int                 `json:"id"`
	CompanyID            int                 `json:"company_id"`
	SupplierID           int                 `json:"supplier_id"`
	SupplierCode         string              `json:"supplier_code"`
	SupplierName         string              `json:"supplier_name"`
	PONumber             *string             `json:"po_number,omitempty"`
	Status               string              `json:"status"`
	PODate               time.Time           `json:"po_date"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date,omitempty"`
	Currency             string              `json:"currency"`
	Total                decimal.Decimal     `json:"total"`
	Notes                *string             `json:"notes,omitempty"`
	ApprovedAt           *time.Time          `json:"approved_at,omitempty"`
	CancelledAt          *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	Lines                []PurchaseOrderLine `json:"lines,omitempty"`
}

// PurchaseOrderLine represents a single line on a purchase order.
type PurchaseOrderLine struct {
	ID          int             `json:"id"`
	OrderID     int             `json:"order_id"`
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"qty_ordered"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PurchaseOrderLineInput holds the fields required to create a purchase order line.
type PurchaseOrderLineInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// PurchaseOrderInput is the header of a new purchase order.
type PurchaseOrderInput struct {
	SupplierID           int        `json:"supplier_id"`
	PODate               time.Time  `json:"po_date"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	Currency             string     `json:"currency"`
	Notes                string     `json:"notes,omitempty"`
}

// PurchaseOrderService provides purchase order lifecycle operations.
type PurchaseOrderService interface {
	// CreatePO creates a new DRAFT purchase order with computed line totals.
	CreatePO(ctx context.Context, companyID int, input PurchaseOrderInput, lines []PurchaseOrderLineInput) (*PurchaseOrder, error)

	// ApprovePO transitions a DRAFT PO to APPROVED, assigning a gapless PO number.
	// Approving an already-APPROVED PO is a no-op.
	ApprovePO(ctx context.Context, companyID, poID int) (*PurchaseOrder, error)

	// CancelPO cancels a DRAFT or APPROVED purchase order. Its lines then drop
	// out of the matchable lists. A PO with live goods receipts cannot be cancelled.
	CancelPO(ctx context.Context, companyID, poID int) error

	// GetPO returns a purchase order including all lines.
	GetPO(ctx context.Context, companyID, poID int) (*PurchaseOrder, error)

	// GetPOs returns purchase orders for a company, optionally filtered by status.
	// An empty status string returns all orders.
	GetPOs(ctx context.Context, companyID int, status string) ([]PurchaseOrder, error)
}
