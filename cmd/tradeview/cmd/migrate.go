package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeview/config"
	"github.com/rustyeddy/tradeview/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply, revert or inspect schema migrations",
	Long: `Manage the database schema.

Subcommands:
  up     - Apply every pending migration
  down   - Revert applied migrations, newest first
  status - List migrations and whether they are applied

Examples:
  tradeview migrate up
  tradeview migrate down --steps 1
  tradeview migrate status --db ./db/trading_view.db`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert applied migrations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateDownSteps int

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to revert (0 = all)")
}

// openRaw opens the store without applying migrations.
func openRaw() (*store.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return st, cfg, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	st, cfg, err := openRaw()
	if err != nil {
		return err
	}
	defer st.Close()

	applied, err := st.Migrator().Up(cmd.Context())
	out := cmd.OutOrStdout()
	for _, v := range applied {
		fmt.Fprintf(out, "applied  %s\n", v)
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintf(out, "%s is up to date\n", cfg.Database.Path)
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	st, _, err := openRaw()
	if err != nil {
		return err
	}
	defer st.Close()

	reverted, err := st.Migrator().Down(cmd.Context(), migrateDownSteps)
	out := cmd.OutOrStdout()
	for _, v := range reverted {
		fmt.Fprintf(out, "reverted %s\n", v)
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	if len(reverted) == 0 {
		fmt.Fprintln(out, "nothing to revert")
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	st, _, err := openRaw()
	if err != nil {
		return err
	}
	defer st.Close()

	status, err := st.Migrator().Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}

	w := table(cmd.OutOrStdout())
	fmt.Fprintln(w, "VERSION\tAPPLIED\tAT")
	for _, s := range status {
		at := "-"
		if s.AppliedAt != nil {
			at = s.AppliedAt.String()
		}
		fmt.Fprintf(w, "%s\t%t\t%s\n", s.Version, s.Applied, at)
	}
	return w.Flush()
}
