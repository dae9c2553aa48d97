package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeview/market"
	"github.com/rustyeddy/tradeview/store"
)

var symbolCmd = &cobra.Command{
	Use:   "symbol",
	Short: "Manage the symbol catalog",
	Long: `Add, update, list and delete symbols.

Deleting a symbol also deletes its bars, indicators, signals and backtests.

Examples:
  tradeview symbol add AAPL --name "Apple Inc." --type stock --exchange NASDAQ
  tradeview symbol add EURUSD --name "Euro / US Dollar" --type forex --exchange OANDA --base EUR --quote USD --tick 0.00001
  tradeview symbol list
  tradeview symbol delete AAPL`,
}

var symbolAddCmd = &cobra.Command{
	Use:   "add <symbol>",
	Short: "Add a symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbolAdd,
}

var symbolUpdateCmd = &cobra.Command{
	Use:   "update <symbol>",
	Short: "Change the attributes of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbolUpdate,
}

var symbolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every symbol",
	Args:  cobra.NoArgs,
	RunE:  runSymbolList,
}

var symbolDeleteCmd = &cobra.Command{
	Use:   "delete <symbol>",
	Short: "Delete a symbol and everything recorded for it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbolDelete,
}

var symbolFlags struct {
	name, typ, exchange, base, quote string
	lot, tick                        float64
}

func init() {
	rootCmd.AddCommand(symbolCmd)
	symbolCmd.AddCommand(symbolAddCmd)
	symbolCmd.AddCommand(symbolUpdateCmd)
	symbolCmd.AddCommand(symbolListCmd)
	symbolCmd.AddCommand(symbolDeleteCmd)

	for _, c := range []*cobra.Command{symbolAddCmd, symbolUpdateCmd} {
		c.Flags().StringVar(&symbolFlags.name, "name", "", "display name")
		c.Flags().StringVar(&symbolFlags.typ, "type", "stock", "symbol type (stock, forex, crypto, ...)")
		c.Flags().StringVar(&symbolFlags.exchange, "exchange", "", "exchange or venue")
		c.Flags().StringVar(&symbolFlags.base, "base", "", "base currency")
		c.Flags().StringVar(&symbolFlags.quote, "quote", "", "quote currency")
		c.Flags().Float64Var(&symbolFlags.lot, "lot", 0, "lot size")
		c.Flags().Float64Var(&symbolFlags.tick, "tick", 0, "tick size")
	}
	_ = symbolAddCmd.MarkFlagRequired("name")
	_ = symbolAddCmd.MarkFlagRequired("exchange")
}

// applySymbolFlags copies the flags the user set onto sym.
func applySymbolFlags(cmd *cobra.Command, sym *market.Symbol) {
	set := cmd.Flags().Changed
	if set("name") {
		sym.Name = symbolFlags.name
	}
	if set("type") || sym.SymbolType == "" {
		sym.SymbolType = symbolFlags.typ
	}
	if set("exchange") {
		sym.Exchange = symbolFlags.exchange
	}
	if set("base") {
		sym.BaseCurrency = market.StringPtr(symbolFlags.base)
	}
	if set("quote") {
		sym.QuoteCurrency = market.StringPtr(symbolFlags.quote)
	}
	if set("lot") {
		sym.LotSize = market.FloatPtr(symbolFlags.lot)
	}
	if set("tick") {
		sym.TickSize = market.FloatPtr(symbolFlags.tick)
	}
}

func runSymbolAdd(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		sym := market.Symbol{Symbol: args[0]}
		applySymbolFlags(cmd, &sym)
		if err := st.CreateSymbol(ctx, &sym); err != nil {
			return fmt.Errorf("add symbol: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s (id %d)\n", sym.Symbol, sym.ID)
		return nil
	})
}

func runSymbolUpdate(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		sym, err := st.GetSymbol(ctx, args[0])
		if err != nil {
			return err
		}
		applySymbolFlags(cmd, &sym)
		if err := st.UpdateSymbol(ctx, &sym); err != nil {
			return fmt.Errorf("update symbol: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated %s\n", sym.Symbol)
		return nil
	})
}

func runSymbolList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		syms, err := st.ListSymbols(ctx)
		if err != nil {
			return err
		}

		w := table(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tSYMBOL\tNAME\tTYPE\tEXCHANGE")
		for _, s := range syms {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Symbol, s.Name, s.SymbolType, s.Exchange)
		}
		return w.Flush()
	})
}

func runSymbolDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		if err := st.DeleteSymbol(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
		return nil
	})
}
