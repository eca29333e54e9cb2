package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type supplierService struct {
	pool     *pgxpool.Pool
	resolver AccountResolver
}

// NewSupplierService constructs a SupplierService backed by PostgreSQL.
func NewSupplierService(pool *pgxpool.Pool, resolver AccountResolver) SupplierService {
	return &supplierService{pool: pool, resolver: resolver}
}

const supplierColumns = `id, company_id, code, name, contact_person, email, phone, address,
	payment_terms_days, ap_account_code, is_active, created_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	v := &Supplier{}
	err := row.Scan(
		&v.ID, &v.CompanyID, &v.Code, &v.Name,
		&v.ContactPerson, &v.Email, &v.Phone, &v.Address,
		&v.PaymentTermsDays, &v.APAccountCode, &v.IsActive, &v.CreatedAt,
	)
	return v, err
}

func (s *supplierService) CreateSupplier(ctx context.Context, companyID int, input SupplierInput) (*Supplier, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Code == "" {
		return nil, invalid("code", "supplier code is required")
	}
	if input.Name == "" {
		return nil, invalid("name", "supplier name is required")
	}
	if input.PaymentTermsDays < 0 {
		return nil, invalid("payment_terms_days", "must not be negative")
	}

	apAccountCode := input.APAccountCode
	if apAccountCode == "" {
		code, err := s.resolver.Get(ctx, companyID, SettingPayableAccount, DefaultPayableAccount)
		if err != nil {
			return nil, err
		}
		apAccountCode = code
	}
	paymentTerms := input.PaymentTermsDays
	if paymentTerms == 0 {
		paymentTerms = defaultPaymentTermsDays
	}

	toPtr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	v, err := scanSupplier(s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (company_id, code, name, contact_person, email, phone, address,
		                       payment_terms_days, ap_account_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+supplierColumns,
		companyID, input.Code, input.Name, toPtr(input.ContactPerson), toPtr(input.Email),
		toPtr(input.Phone), toPtr(input.Address), paymentTerms, apAccountCode,
	))
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, invalid("code", "supplier %q already exists", input.Code)
		}
		return nil, fmt.Errorf("create supplier %q: %w", input.Code, err)
	}
	return v, nil
}

func (s *supplierService) GetSuppliers(ctx context.Context, companyID int) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE company_id = $1 AND is_active = true
		ORDER BY code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("get suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		v, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, *v)
	}
	return suppliers, rows.Err()
}

func (s *supplierService) GetSupplier(ctx context.Context, companyID, supplierID int) (*Supplier, error) {
	return getSupplier(ctx, s.pool, companyID, supplierID)
}

func getSupplier(ctx context.Context, q querier, companyID, supplierID int) (*Supplier, error) {
	v, err := scanSupplier(q.QueryRow(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE company_id = $1 AND id = $2`, companyID, supplierID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("supplier", supplierID)
		}
		return nil, fmt.Errorf("get supplier %d: %w", supplierID, err)
	}
	return v, nil
}

func (s *supplierService) GetSupplierByCode(ctx context.Context, companyID int, code string) (*Supplier, error) {
	v, err := scanSupplier(s.pool.QueryRow(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE company_id = $1 AND code = $2`, companyID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %q: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("get supplier %q: %w", code, err)
	}
	return v, nil
}
