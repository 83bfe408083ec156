package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "otpctl",
		Short:        "Operate the OTP auth API's storage",
		Long:         "Maintenance commands for the OTP auth API: schema migrations and expired challenge cleanup. Configuration is read from the same environment and .env file as the server.",
		SilenceUsage: true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE:  runMigrateUp,
	}

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE:  runMigrateStatus,
	}

	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)

	challengesCmd := &cobra.Command{
		Use:   "challenges",
		Short: "Manage outstanding OTP challenges",
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired challenges once",
		RunE:  runPurge,
	}
	// Overrides CHALLENGE_STORE
	purgeCmd.Flags().String("store", "", "Challenge store (redis, postgres, memory)")

	challengesCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(migrateCmd, challengesCmd)

	return rootCmd
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
