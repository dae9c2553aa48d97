package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeview/barfile"
	"github.com/rustyeddy/tradeview/market"
	"github.com/rustyeddy/tradeview/store"
)

var barsCmd = &cobra.Command{
	Use:   "bars",
	Short: "List, import and export OHLC bars",
	Long: `Work with the OHLC bars of one symbol.

Timestamps use the form "YYYY-MM-DD HH:MM:SS" and ranges are inclusive.

Examples:
  tradeview bars list AAPL --start "2024-05-20 09:30:00" --end "2024-05-20 16:00:00"
  tradeview bars import AAPL aapl.csv
  tradeview bars export AAPL aapl.parquet`,
}

var barsListCmd = &cobra.Command{
	Use:   "list <symbol>",
	Short: "Print bars, optionally within a time range",
	Args:  cobra.ExactArgs(1),
	RunE:  runBarsList,
}

var barsImportCmd = &cobra.Command{
	Use:   "import <symbol> <file.csv|file.parquet>",
	Short: "Import bars in one transaction",
	Long: `Import bars for an existing symbol. CSV files hold
timestamp,open,high,low,close[,volume] rows with an optional header. Either
every bar is stored or none is.`,
	Args: cobra.ExactArgs(2),
	RunE: runBarsImport,
}

var barsExportCmd = &cobra.Command{
	Use:   "export <symbol> <file.csv|file.parquet>",
	Short: "Export bars to CSV or Parquet",
	Args:  cobra.ExactArgs(2),
	RunE:  runBarsExport,
}

var barsStart, barsEnd string

func init() {
	rootCmd.AddCommand(barsCmd)
	barsCmd.AddCommand(barsListCmd)
	barsCmd.AddCommand(barsImportCmd)
	barsCmd.AddCommand(barsExportCmd)

	for _, c := range []*cobra.Command{barsListCmd, barsExportCmd} {
		c.Flags().StringVar(&barsStart, "start", "", "range start, inclusive")
		c.Flags().StringVar(&barsEnd, "end", "", "range end, inclusive")
	}
}

// selectBars returns all bars for code, or the --start/--end range when
// either flag is given. Both are required together.
func selectBars(ctx context.Context, st *store.Store, code string) ([]market.Bar, error) {
	if barsStart == "" && barsEnd == "" {
		return st.ListBarsBySymbol(ctx, code)
	}
	if barsStart == "" || barsEnd == "" {
		return nil, fmt.Errorf("--start and --end must be given together")
	}
	start, err := market.ParseTimestamp(barsStart)
	if err != nil {
		return nil, err
	}
	end, err := market.ParseTimestamp(barsEnd)
	if err != nil {
		return nil, err
	}
	return st.ListBarsBySymbolAndRange(ctx, code, start, end)
}

func runBarsList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		bars, err := selectBars(ctx, st, args[0])
		if err != nil {
			return err
		}

		w := table(cmd.OutOrStdout())
		fmt.Fprintln(w, "TIMESTAMP\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
		for _, b := range bars {
			vol := "-"
			if b.Volume != nil {
				vol = fmt.Sprintf("%g", *b.Volume)
			}
			fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t%s\n", b.Timestamp, b.Open, b.High, b.Low, b.Close, vol)
		}
		return w.Flush()
	})
}

func readBars(path string, symbolID int64) ([]market.Bar, error) {
	format, err := barfile.FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == barfile.FormatParquet {
		return barfile.ReadParquet(path, symbolID)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return barfile.ReadCSV(f, symbolID)
}

func runBarsImport(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		sym, err := st.GetSymbol(ctx, args[0])
		if err != nil {
			return err
		}
		bars, err := readBars(args[1], sym.ID)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		if err := st.InsertBars(ctx, bars); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d bars for %s\n", len(bars), sym.Symbol)
		return nil
	})
}

func runBarsExport(cmd *cobra.Command, args []string) error {
	path := args[1]
	format, err := barfile.FormatOf(path)
	if err != nil {
		return err
	}

	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		bars, err := selectBars(ctx, st, args[0])
		if err != nil {
			return err
		}

		if format == barfile.FormatParquet {
			err = barfile.WriteParquet(path, bars)
		} else {
			err = writeCSVFile(path, bars)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d bars to %s\n", len(bars), path)
		return nil
	})
}

func writeCSVFile(path string, bars []market.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := barfile.WriteCSV(f, bars); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
