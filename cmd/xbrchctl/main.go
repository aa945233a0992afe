// Package main provides xbrchctl, the operator CLI for an XBRCH deployment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/config"
	"github.com/xbrch/xbrch-saas-platform/internal/ledger"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "xbrchctl"

	seedAdminLimit = 10000
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Operate an XBRCH deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(migrateCmd(), seedAdminCmd(), recordUsageCmd(), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dir == "" {
				dir = cfg.Server.MigrationsDir
			}
			if err := store.RunMigrations(cfg.Database.URL, dir); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			slog.Info("database migrations applied", "dir", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func seedAdminCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin tenant on the authority plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := store.Connect(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			t, err := seedAdmin(ctx, store.NewPostgresStore(pool), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin created: %s (%s)\n", t.Email, t.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

type tenantCreator interface {
	CreateTenant(ctx context.Context, t *models.Tenant) error
}

func seedAdmin(ctx context.Context, s tenantCreator, email, password string) (*models.Tenant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 || len(password) > 72 {
		return nil, errors.New("password must be between 8 and 72 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &models.Tenant{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Plan:         models.PlanAuthority,
		MonthlyLimit: seedAdminLimit,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateTenant(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("tenant %s already exists", email)
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return t, nil
}

func recordUsageCmd() *cobra.Command {
	var (
		tenant string
		month  string
		tokens int
	)

	cmd := &cobra.Command{
		Use:   "record-usage",
		Short: "Charge one broadcast to a tenant's monthly ledger",
		Long: "Charge one broadcast (and its tokens) to a tenant's monthly ledger, " +
			"for broadcasts sent outside the API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := store.Connect(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			entry, err := recordUsage(ctx, ledger.New(store.NewPostgresStore(pool)), tenant, month, tokens, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d broadcasts, %d tokens\n",
				entry.TenantID, entry.Month, entry.BroadcastsUsed, entry.AITokensUsed)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&month, "month", "", "Ledger month as YYYY-MM (defaults to the current month)")
	cmd.Flags().IntVar(&tokens, "tokens", 0, "AI tokens to add")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

type usageRecorder interface {
	Record(ctx context.Context, tenantID uuid.UUID, month string, tokens int) (*models.UsageEntry, error)
}

func recordUsage(ctx context.Context, r usageRecorder, tenant, month string, tokens int, now time.Time) (*models.UsageEntry, error) {
	id, err := uuid.Parse(strings.TrimSpace(tenant))
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id %q", tenant)
	}
	if month == "" {
		month = ledger.MonthKey(now)
	} else if _, err := time.Parse("2006-01", month); err != nil {
		return nil, fmt.Errorf("invalid month %q, want YYYY-MM", month)
	}
	if tokens < 0 {
		return nil, errors.New("tokens must not be negative")
	}
	return r.Record(ctx, id, month, tokens)
}
