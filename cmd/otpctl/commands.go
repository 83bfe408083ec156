package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/otp-auth-api/internal/challenge"
	"github.com/redmonkez12/otp-auth-api/internal/config"
	"github.com/redmonkez12/otp-auth-api/internal/database"
)

// openDB is a seam for tests
var openDB = func(cmd *cobra.Command, cfg *config.Config) (*bun.DB, error) {
	return database.Open(cmd.Context(), cfg.Database.ConnectionString())
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db.DB); err != nil {
		return err
	}

	printf(cmd, "migrations applied\n")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return database.MigrationStatus(cmd.Context(), db.DB)
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, _ := cmd.Flags().GetString("store")
	if store == "" {
		store = cfg.OTP.ChallengeStore
	}

	switch store {
	case config.StoreRedis:
		// Redis expires challenge keys on its own
		printf(cmd, "redis challenge keys expire on their own; nothing to purge\n")
		return nil
	case config.StoreMemory:
		printf(cmd, "memory challenges live inside the server process; nothing to purge\n")
		return nil
	case config.StorePostgres:
	default:
		return fmt.Errorf("unknown challenge store %q", store)
	}

	db, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pg := challenge.NewPostgresStore(db, cfg.OTP.TTL, clockwork.NewRealClock())
	n, err := pg.DeleteExpired(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to purge challenges: %w", err)
	}

	printf(cmd, "%d expired challenges removed\n", n)
	return nil
}
