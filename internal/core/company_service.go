package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CompanyService resolves tenants.
type CompanyService interface {
	GetByCode(ctx context.Context, code string) (*Company, error)
	GetByID(ctx context.Context, companyID int) (*Company, error)
	// GetDefault returns the only company, failing when there are several.
	GetDefault(ctx context.Context) (*Company, error)
}

type companyService struct {
	pool *pgxpool.Pool
}

func NewCompanyService(pool *pgxpool.Pool) CompanyService {
	return &companyService{pool: pool}
}

func (s *companyService) GetByCode(ctx context.Context, code string) (*Company, error) {
	c := &Company{}
	err := s.pool.QueryRow(ctx, `SELECT id, company_code, name, base_currency FROM companies WHERE company_code = $1`, code).
		Scan(&c.ID, &c.CompanyCode, &c.Name, &c.BaseCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("company %q: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("get company %q: %w", code, err)
	}
	return c, nil
}

func (s *companyService) GetByID(ctx context.Context, companyID int) (*Company, error) {
	c := &Company{}
	err := s.pool.QueryRow(ctx, `SELECT id, company_code, name, base_currency FROM companies WHERE id = $1`, companyID).
		Scan(&c.ID, &c.CompanyCode, &c.Name, &c.BaseCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("company", companyID)
		}
		return nil, fmt.Errorf("get company %d: %w", companyID, err)
	}
	return c, nil
}

func (s *companyService) GetDefault(ctx context.Context) (*Company, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM companies").Scan(&count); err != nil {
		return nil, fmt.Errorf("count companies: %w", err)
	}
	switch {
	case count == 0:
		return nil, fmt.Errorf("no company configured, have migrations and seed data run?: %w", ErrNotFound)
	case count > 1:
		return nil, invalid("company", "multiple companies found; set COMPANY_CODE")
	}

	c := &Company{}
	if err := s.pool.QueryRow(ctx, `SELECT id, company_code, name, base_currency FROM companies LIMIT 1`).
		Scan(&c.ID, &c.CompanyCode, &c.Name, &c.BaseCurrency); err != nil {
		return nil, fmt.Errorf("get default company: %w", err)
	}
	return c, nil
}
