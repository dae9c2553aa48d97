package cmd

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeview/api"
	"github.com/rustyeddy/tradeview/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP query API",
	Long: `Apply pending migrations, then serve the query API until interrupted.

Example:
  tradeview serve --config tradeview.yaml --addr 0.0.0.0:3000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db := cfg.Database
	st, err := store.Open(db.Path, store.WithPool(db.MaxOpenConns, db.MaxIdleConns, db.ConnMaxLifetime))
	if err != nil {
		logger.Error("db open failed", zap.String("path", db.Path), zap.Error(err))
		return err
	}
	defer st.Close()

	// Queries assume the full schema, so serving never starts on a partial one.
	applied, err := st.Migrator().Up(cmd.Context())
	if err != nil {
		logger.Error("migrate failed", zap.Strings("applied", applied), zap.Error(err))
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}

	router := api.NewRouter(st, logger, api.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		ExposeErrors:   cfg.Server.ExposeErrors,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return api.Serve(ctx, srv, logger)
}
