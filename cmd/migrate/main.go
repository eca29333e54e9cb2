package main

import (
	"context"
	"fmt"
	"os"

	"ap-settlement/internal/config"
	"ap-settlement/internal/core"
	"ap-settlement/internal/db"
	"ap-settlement/internal/logger"
	"ap-settlement/migrations"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent("migrate")

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply schema migrations and bootstrap users",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := db.NewPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := migrations.Apply(cmd.Context(), pool, log); err != nil {
				return err
			}
			log.Info().Msg("all migrations applied")
			return nil
		},
	}

	createUser := &cobra.Command{
		Use:   "create-user",
		Short: "Create a login for an existing company",
		Example: `  migrate create-user --company 1000 --username alice --email alice@example.com --role accountant
  APCTL_PASSWORD=... migrate create-user --company 1000 --username bob --role viewer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, _ := cmd.Flags().GetString("company")
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			password := os.Getenv("APCTL_PASSWORD")
			if password == "" {
				return fmt.Errorf("APCTL_PASSWORD environment variable is required")
			}
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			company, err := core.NewCompanyService(pool).GetByCode(ctx, code)
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user, err := core.NewUserService(pool).CreateUser(ctx, company.ID, username, email, string(hash), core.Role(role))
			if err != nil {
				return err
			}
			log.Info().Int("user_id", user.ID).Str("username", user.Username).Str("role", role).Msg("user created")
			return nil
		},
	}
	createUser.Flags().String("company", cfg.CompanyCode, "Company code")
	createUser.Flags().String("username", "", "Login name")
	createUser.Flags().String("email", "", "Email address")
	createUser.Flags().String("role", string(core.RoleViewer), "admin, accountant, ap_clerk or viewer")
	_ = createUser.MarkFlagRequired("username")
	root.AddCommand(createUser)

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
}
