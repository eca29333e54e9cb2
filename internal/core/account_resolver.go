package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Setting keys understood by the resolver.
const (
	SettingPayableAccount        = "ap.payable_account"
	SettingDefaultExpenseAccount = "ap.default_expense_account"
	SettingInputTaxAccount       = "ap.input_tax_account"
	SettingBankAccount           = "ap.bank_account"
)

// Fallback account codes used when a company has no setting configured.
const (
	DefaultPayableAccount  = "2000"
	DefaultExpenseAccount  = "5000"
	DefaultInputTaxAccount = "1500"
	DefaultBankAccount     = "1000"
)

// AccountResolver resolves company-configurable ledger account codes from the
// account_settings table.
type AccountResolver interface {
	// Get returns the active account code for settingKey, highest priority first,
	// or def when the company has none configured.
	Get(ctx context.Context, companyID int, settingKey, def string) (string, error)
}

type accountResolver struct {
	pool *pgxpool.Pool
}

func NewAccountResolver(pool *pgxpool.Pool) AccountResolver {
	return &accountResolver{pool: pool}
}

func (r *accountResolver) Get(ctx context.Context, companyID int, settingKey, def string) (string, error) {
	var accountCode string
	err := r.pool.QueryRow(ctx, `
		SELECT account_code
		FROM account_settings
		WHERE company_id = $1
		  AND setting_key = $2
		  AND (effective_to IS NULL OR effective_to >= CURRENT_DATE)
		ORDER BY priority DESC
		LIMIT 1
	`, companyID, settingKey).Scan(&accountCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return def, nil
		}
		return "", fmt.Errorf("resolve account setting (company_id=%d, key=%q): %w", companyID, settingKey, err)
	}
	return accountCode, nil
}
