package core

import (
	"context"
	"time"
)

// Supplier is a vendor that issues bills and credit notes to the company.
type Supplier struct {
	ID               int       `json:"id"`
	CompanyID        int       `json:"company_id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	ContactPerson    *string   `json:"contact_person,omitempty"`
	Email            *string   `json:"email,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	Address          *string   `json:"address,omitempty"`
	PaymentTermsDays int       `json:"payment_terms_days"`
	APAccountCode    string    `json:"ap_account_code"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// SupplierInput holds the fields required to create a supplier.
type SupplierInput struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	ContactPerson    string `json:"contact_person,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address,omitempty"`
	PaymentTermsDays int    `json:"payment_terms_days,omitempty"`
	APAccountCode    string `json:"ap_account_code,omitempty"`
}

// SupplierService provides supplier master data operations.
type SupplierService interface {
	// CreateSupplier creates a supplier. Payment terms default to 30 days and the
	// AP account to the company's payable account setting.
	CreateSupplier(ctx context.Context, companyID int, input SupplierInput) (*Supplier, error)

	// GetSuppliers returns all active suppliers for a company, ordered by code.
	GetSuppliers(ctx context.Context, companyID int) ([]Supplier, error)

	// GetSupplier returns a supplier by id, scoped to the company.
	GetSupplier(ctx context.Context, companyID, supplierID int) (*Supplier, error)

	// GetSupplierByCode returns a supplier by code, scoped to the company.
	GetSupplierByCode(ctx context.Context, companyID int, code string) (*Supplier, error)
}

const defaultPaymentTermsDays = 30
