package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeview/market"
	"github.com/rustyeddy/tradeview/pkg/id"
	"github.com/rustyeddy/tradeview/store"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Record and inspect backtest results",
	Long: `Record backtest results produced elsewhere and inspect them.

Examples:
  tradeview backtest import run.json --symbol AAPL
  tradeview backtest list AAPL
  tradeview backtest show 01HZ3V6Q8Y2N5K7W9XJ4T0C1RB`,
}

var backtestListCmd = &cobra.Command{
	Use:   "list [symbol]",
	Short: "List backtests, optionally for one symbol",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBacktestList,
}

var backtestShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a backtest and its trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktestShow,
}

var backtestImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Store a backtest result and its trades",
	Long: `Store one backtest result read from a JSON file. Results and trades
without an id get a fresh ULID. The result and its trades are stored in one
transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktestImport,
}

var backtestDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a backtest and its trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktestDelete,
}

var backtestSymbol string

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestListCmd)
	backtestCmd.AddCommand(backtestShowCmd)
	backtestCmd.AddCommand(backtestImportCmd)
	backtestCmd.AddCommand(backtestDeleteCmd)

	backtestImportCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "symbol the backtest ran on (defaults to the file's symbol field)")
}

func runBacktestList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		var (
			results []market.BacktestResult
			err     error
		)
		if len(args) == 1 {
			results, err = st.ListBacktestsBySymbol(ctx, args[0])
		} else {
			results, err = st.ListBacktests(ctx)
		}
		if err != nil {
			return err
		}

		w := table(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tSYMBOL\tTIMEFRAME\tSTART\tEND\tRETURN\tTRADES")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f%%\t%d\n",
				r.ID, r.Symbol, r.Timeframe, r.StartDate, r.EndDate, r.TotalReturn*100, r.TradeCount)
		}
		return w.Flush()
	})
}

func runBacktestShow(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		r, err := st.GetBacktest(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backtest %s\n", r.ID)
		fmt.Fprintf(out, "  Symbol:    %s (%s)\n", r.Symbol, r.Timeframe)
		fmt.Fprintf(out, "  Period:    %s .. %s\n", r.StartDate, r.EndDate)
		fmt.Fprintf(out, "  Capital:   %.2f -> %.2f\n", r.InitialCapital, r.FinalCapital)
		fmt.Fprintf(out, "  Return:    %.2f%% (annual %.2f%%)\n", r.TotalReturn*100, r.AnnualReturn*100)
		fmt.Fprintf(out, "  Drawdown:  %.2f%%  Sharpe: %.2f\n", r.MaxDrawdown*100, r.SharpeRatio)
		fmt.Fprintf(out, "  Trades:    %d (%d won, %d lost, win rate %.2f%%)\n",
			r.TradeCount, r.WinningTrades, r.LosingTrades, r.WinRate*100)
		fmt.Fprintf(out, "  Profit factor: %.2f\n\n", r.ProfitFactor)

		w := table(out)
		fmt.Fprintln(w, "TIMESTAMP\tTYPE\tPRICE\tQTY\tFEE\tCAPITAL\tPOSITION")
		for _, t := range r.Trades {
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%g\t%.2f\t%g\n",
				t.Timestamp, t.TradeType, t.Price, t.Quantity, t.Fee, t.RemainingCapital, t.Position)
		}
		return w.Flush()
	})
}

func readBacktest(path string) (market.BacktestResult, error) {
	var r market.BacktestResult
	data, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode %s: %w", path, err)
	}

	if r.ID == "" {
		r.ID = id.New()
	}
	for i := range r.Trades {
		t := &r.Trades[i]
		if t.ID == "" {
			t.ID = id.New()
		}
		tt, err := market.ParseTradeType(string(t.TradeType))
		if err != nil {
			return r, fmt.Errorf("trade %d: %w", i, err)
		}
		t.TradeType = tt
	}
	return r, nil
}

func runBacktestImport(cmd *cobra.Command, args []string) error {
	r, err := readBacktest(args[0])
	if err != nil {
		return err
	}
	code := backtestSymbol
	if code == "" {
		code = r.Symbol
	}
	if code == "" {
		return fmt.Errorf("no symbol: pass --symbol or set \"symbol\" in %s", args[0])
	}

	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		sym, err := st.GetSymbol(ctx, code)
		if err != nil {
			return err
		}
		r.SymbolID, r.Symbol = sym.ID, sym.Symbol
		if err := st.InsertBacktest(ctx, &r); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored backtest %s for %s with %d trades\n", r.ID, r.Symbol, len(r.Trades))
		return nil
	})
}

func runBacktestDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		if err := st.DeleteBacktest(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted backtest %s\n", args[0])
		return nil
	})
}
