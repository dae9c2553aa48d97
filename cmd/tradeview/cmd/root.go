package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeview/config"
	"github.com/rustyeddy/tradeview/internal/logging"
	"github.com/rustyeddy/tradeview/store"
)

var rootCmd = &cobra.Command{
	Use:   "tradeview",
	Short: "OHLC time-series store and query service",
	Long: `Tradeview stores OHLC bars, technical indicators, trading signals and
backtest results in SQLite and serves them over a JSON HTTP API.

It provides tools for:
  - Running the HTTP query API
  - Applying and reverting schema migrations
  - Managing the symbol catalog
  - Importing and exporting bars as CSV or Parquet
  - Recording and inspecting backtest results`,
	SilenceUsage: true,
}

var (
	cfgFile string
	dbPath  string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides database.path)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// openStore opens the configured database. When database.auto_migrate is set
// pending migrations are applied first.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db := cfg.Database
	st, err := store.Open(db.Path, store.WithPool(db.MaxOpenConns, db.MaxIdleConns, db.ConnMaxLifetime))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if db.AutoMigrate {
		if _, err := st.Migrator().Up(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return st, nil
}

// withStore loads config, opens the store and runs fn against it.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
