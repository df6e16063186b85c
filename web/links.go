package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/creatorlink/internal/config"
	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/linking"
	"github.com/devilmonastery/creatorlink/internal/pkg/idgen"
	"github.com/devilmonastery/creatorlink/migrations"
)

func newLinksCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Linked account management commands",
		Long:  "Inspect or clear the creator account linked to a user",
	}

	cmd.AddCommand(newLinksShowCommand(configPath))
	cmd.AddCommand(newLinksDisconnectCommand(configPath))

	return cmd
}

func newLinksShowCommand(configPath *string) *cobra.Command {
	var (
		userID  string
		history int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's linked account",
		Example: `  # Show the linked account and recent link activity
  creatorlink links show --user 1234567890 --history 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepositories(cmd.Context(), *configPath, func(ctx context.Context, repos *repositories.Repositories) error {
				status := linking.NewStatusService(repos.LinkedAccounts, 1, time.Second, slog.Default())
				st, err := status.Status(ctx, userID)
				if err != nil {
					return err
				}

				out := map[string]any{"userId": userID, "status": st}
				if history > 0 {
					logs, err := repos.Audit.ListByUser(ctx, userID, history)
					if err != nil {
						return fmt.Errorf("failed to list link history: %w", err)
					}
					out["history"] = logs
				}

				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().IntVar(&history, "history", 0, "Number of recent link audit entries to include")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newLinksDisconnectCommand(configPath *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Clear a user's linked account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepositories(cmd.Context(), *configPath, func(ctx context.Context, repos *repositories.Repositories) error {
				status := linking.NewStatusService(repos.LinkedAccounts, 1, time.Second, slog.Default())
				if err := status.Disconnect(ctx, userID); err != nil {
					return err
				}

				entry := entities.NewAuditLog(&userID, entities.ActionLinkDisconnected, entities.ResourceLinkedAccount).
					WithMetadata("source", "cli")
				if err := repos.Audit.Create(ctx, entry); err != nil {
					slog.Warn("failed to write audit log", slog.Any("error", err))
				}

				fmt.Printf("Linked account cleared for user %s\n", userID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.MarkFlagRequired("user")

	return cmd
}

// withRepositories connects to the database, applies migrations and runs fn
func withRepositories(ctx context.Context, configPath string, fn func(context.Context, *repositories.Repositories) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := idgen.Initialize(cfg.NodeID); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	log := slog.Default().With("component", "cli")
	pgConn, err := connectDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer pgConn.Close()

	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}

	return fn(ctx, pgConn.Repositories())
}
