package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"ap-settlement/internal/app"
	"ap-settlement/internal/core"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// NewRootCmd builds the apctl command tree. Every command writes JSON to out.
func NewRootCmd(svc app.ApplicationService, out io.Writer, log zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "apctl",
		Short: "Accounts payable reports and posting maintenance",
		Long: `apctl runs payables reports and ledger posting maintenance against the
configured database.

The company defaults to COMPANY_CODE, or the only company in the database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("company", "", "Company code (default: COMPANY_CODE or the only company)")

	r := &runner{svc: svc, out: out, log: log}
	root.AddCommand(
		r.agingCmd(),
		r.statementCmd(),
		r.reconcileCmd(),
		r.unpostedCmd(),
		r.retryPostingsCmd(),
		r.matchableCmd(),
	)
	return root
}

type runner struct {
	svc app.ApplicationService
	out io.Writer
	log zerolog.Logger
}

func (r *runner) agingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aging",
		Short: "Aged payables by supplier",
		Example: `  apctl aging
  apctl aging --as-of 2026-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, err := r.company(ctx, cmd)
			if err != nil {
				return err
			}
			asOf, err := dateFlag(cmd, "as-of")
			if err != nil {
				return err
			}
			res, err := r.svc.GetAging(ctx, code, asOf)
			if err != nil {
				return err
			}
			return r.print(res)
		},
	}
	cmd.Flags().String("as-of", "", "Aging date (format: YYYY-MM-DD, default: today)")
	return cmd
}

func (r *runner) statementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Supplier statement with running balance",
		Example: `  apctl statement --supplier 3
  apctl statement --supplier 3 --from 2026-01-01 --to 2026-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, err := r.company(ctx, cmd)
			if err != nil {
				return err
			}
			supplierID, _ := cmd.Flags().GetInt("supplier")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			res, err := r.svc.GetSupplierStatement(ctx, code, supplierID, from, to)
			if err != nil {
				return err
			}
			return r.print(res)
		},
	}
	cmd.Flags().Int("supplier", 0, "Supplier id")
	cmd.Flags().String("from", "", "Start date (format: YYYY-MM-DD)")
	cmd.Flags().String("to", "", "End date (format: YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("supplier")
	return cmd
}

func (r *runner) reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the AP control account with open bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, err := r.company(ctx, cmd)
			if err != nil {
				return err
			}
			asOf, err := dateFlag(cmd, "as-of")
			if err != nil {
				return err
			}
			res, err := r.svc.ReconcileControlAccount(ctx, code, asOf)
			if err != nil {
				return err
			}
			return r.print(res)
		},
	}
	cmd.Flags().String("as-of", "", "Reconciliation date (format: YYYY-MM-DD, default: today)")
	return cmd
}

func (r *runner) unpostedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unposted",
		Short: "List bills, payments and credits still missing a journal entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, err := r.company(ctx, cmd)
			if err != nil {
				return err
			}
			res, err := r.svc.ListUnposted(ctx, code)
			if err != nil {
				return err
			}
			return r.print(res)
		},
	}
}

func (r *runner) retryPostingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-postings",
		Short: "Retry every pending ledger posting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, err := r.company(ctx, cmd)
			if err != nil {
				return err
			}
			res, err := r.svc.RetryPostings(ctx, code)
			if err != nil {
				return err
			}
			r.log.Info().
				Str("company", code).
				Int("attempted", res.Attempted).
				Int("posted", res.Posted).
				Msg("retry finished")
			if err := r.print(res); err != nil {
				return err
			}
			if res.Posted < res.Attempted {
				return fmt.Errorf("%d of %d postings still failing", res.Attempted-res.Posted, res.Attempted)
			}
			return nil
		},
	}
}

func (r *runner) matchableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matchable",
		Short: "PO, receipt and bill lines with quantity left to match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, err := r.company(ctx, cmd)
			if err != nil {
				return err
			}
			supplierID, _ := cmd.Flags().GetInt("supplier")
			res, err := r.svc.GetMatchableLines(ctx, code, supplierID)
			if err != nil {
				return err
			}
			return r.print(res)
		},
	}
	cmd.Flags().Int("supplier", 0, "Supplier id")
	_ = cmd.MarkFlagRequired("supplier")
	return cmd
}

// company returns the --company flag or the default company.
func (r *runner) company(ctx context.Context, cmd *cobra.Command) (string, error) {
	if code, _ := cmd.Flags().GetString("company"); code != "" {
		return code, nil
	}
	c, err := r.svc.LoadDefaultCompany(ctx)
	if err != nil {
		return "", fmt.Errorf("load company: %w", err)
	}
	return c.CompanyCode, nil
}

func (r *runner) print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := core.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s, use YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}
