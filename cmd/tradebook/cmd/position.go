package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/position"
)

var positionCmd = &cobra.Command{
	Use:     "position",
	Aliases: []string{"pos"},
	Short:   "Open, mark and close positions",
	Long: `Manage positions and their profit/loss.

Subcommands:
  open     - Open a position
  mark     - Revalue an open position at a market price
  close    - Close a position and realize its P/L
  update   - Change comment, stop loss, take profit or swap
  delete   - Soft delete (or --hard remove) a position
  show     - Show one position
  list     - List positions
  summary  - P/L totals per currency

Examples:
  tradebook position open EURUSD buy 10000 1.0850 USD -u alice
  tradebook position mark <id> 1.0900 -u alice
  tradebook position close <id> 1.0920 --commission 2 -u alice
  tradebook position show <id> --org -u alice`,
}

var positionOpenCmd = &cobra.Command{
	Use:   "open <symbol> <buy|sell> <volume> <price> <currency>",
	Short: "Open a position",
	Args:  cobra.ExactArgs(5),
	RunE:  runPositionOpen,
}

var positionMarkCmd = &cobra.Command{
	Use:   "mark <position-id> <price>",
	Short: "Revalue an open position at a market price",
	Args:  cobra.ExactArgs(2),
	RunE:  runPositionMark,
}

var positionCloseCmd = &cobra.Command{
	Use:   "close <position-id> <price>",
	Short: "Close a position",
	Args:  cobra.ExactArgs(2),
	RunE:  runPositionClose,
}

var positionUpdateCmd = &cobra.Command{
	Use:   "update <position-id>",
	Short: "Update an open position",
	Long: `Change the comment, stop loss, take profit or swap of an open position.
Only the flags given are changed. A zero stop loss or take profit clears it.`,
	Args: cobra.ExactArgs(1),
	RunE: runPositionUpdate,
}

var positionDeleteCmd = &cobra.Command{
	Use:   "delete <position-id>",
	Short: "Delete a position",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositionDelete,
}

var positionShowCmd = &cobra.Command{
	Use:   "show <position-id>",
	Short: "Show a position",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositionShow,
}

var positionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List positions",
	Args:  cobra.NoArgs,
	RunE:  runPositionList,
}

var positionSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show P/L totals per currency",
	Args:  cobra.NoArgs,
	RunE:  runPositionSummary,
}

var (
	posAt         string
	posPortfolio  string
	posCommission string
	posSwap       string
	posTaxes      string
	posStopLoss   string
	posTakeProfit string
	posComment    string
	posNote       string
	posHard       bool
	posReason     string
	posOrg        bool
	posStatus     string
	posSymbol     string
	posLimit      int
)

func init() {
	rootCmd.AddCommand(positionCmd)
	positionCmd.AddCommand(positionOpenCmd, positionMarkCmd, positionCloseCmd, positionUpdateCmd,
		positionDeleteCmd, positionShowCmd, positionListCmd, positionSummaryCmd)

	positionOpenCmd.Flags().StringVar(&posAt, "at", "", "open time (RFC3339 or YYYY-MM-DD, default now)")
	positionOpenCmd.Flags().StringVar(&posPortfolio, "portfolio", "", "portfolio id")
	positionOpenCmd.Flags().StringVar(&posCommission, "commission", "", "commission paid to open")
	positionOpenCmd.Flags().StringVar(&posSwap, "swap", "", "swap accrued so far")
	positionOpenCmd.Flags().StringVar(&posTaxes, "taxes", "", "taxes paid so far")
	positionOpenCmd.Flags().StringVar(&posStopLoss, "stop-loss", "", "stop loss level")
	positionOpenCmd.Flags().StringVar(&posTakeProfit, "take-profit", "", "take profit level")
	positionOpenCmd.Flags().StringVar(&posComment, "comment", "", "free text")

	positionCloseCmd.Flags().StringVar(&posAt, "at", "", "close time (RFC3339 or YYYY-MM-DD, default now)")
	positionCloseCmd.Flags().StringVar(&posCommission, "commission", "", "extra commission paid to close")
	positionCloseCmd.Flags().StringVar(&posTaxes, "taxes", "", "extra taxes paid on close")
	positionCloseCmd.Flags().StringVar(&posNote, "note", "", "appended to the comment")

	positionUpdateCmd.Flags().StringVar(&posComment, "comment", "", "replace the comment")
	positionUpdateCmd.Flags().StringVar(&posStopLoss, "stop-loss", "", "stop loss level (0 clears)")
	positionUpdateCmd.Flags().StringVar(&posTakeProfit, "take-profit", "", "take profit level (0 clears)")
	positionUpdateCmd.Flags().StringVar(&posSwap, "swap", "", "swap accrued so far")

	positionDeleteCmd.Flags().BoolVar(&posHard, "hard", false, "remove the record instead of marking it deleted")
	positionDeleteCmd.Flags().StringVar(&posReason, "reason", "", "why it was deleted")

	positionShowCmd.Flags().BoolVar(&posOrg, "org", false, "print as an Org-mode block")

	positionListCmd.Flags().StringVar(&posStatus, "status", "", "comma separated statuses (default open and closed)")
	positionListCmd.Flags().StringVar(&posSymbol, "symbol", "", "only this symbol")
	positionListCmd.Flags().StringVar(&posPortfolio, "portfolio", "", "only this portfolio")
	positionListCmd.Flags().IntVar(&posLimit, "limit", 0, "at most this many positions")
	positionListCmd.Flags().BoolVar(&posOrg, "org", false, "print as Org-mode blocks")
}

func runPositionOpen(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	side, ok := market.ParseSide(args[1])
	if !ok {
		return fmt.Errorf("side must be buy or sell, got %q", args[1])
	}
	volume, err := parseDecimal("volume", args[2])
	if err != nil {
		return err
	}
	price, err := parseDecimal("price", args[3])
	if err != nil {
		return err
	}
	at, err := parseTime("at", posAt)
	if err != nil {
		return err
	}
	commission, err := parseDecimal("commission", posCommission)
	if err != nil {
		return err
	}
	swap, err := parseDecimal("swap", posSwap)
	if err != nil {
		return err
	}
	taxes, err := parseDecimal("taxes", posTaxes)
	if err != nil {
		return err
	}
	sl, err := changedDecimal(cmd, "stop-loss", posStopLoss)
	if err != nil {
		return err
	}
	tp, err := changedDecimal(cmd, "take-profit", posTakeProfit)
	if err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.Positions.Open(context.Background(), user, position.OpenSpec{
		Symbol:      args[0],
		Side:        side,
		Volume:      volume,
		OpenPrice:   price,
		OpenTime:    at,
		Currency:    args[4],
		PortfolioID: posPortfolio,
		Commission:  commission,
		Swap:        swap,
		Taxes:       taxes,
		StopLoss:    sl,
		TakeProfit:  tp,
		Comment:     posComment,
	})
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}

	fmt.Printf("✓ Opened %s %s %s @ %s (%s)\n", p.Side, p.Volume, p.Symbol, p.OpenPrice, p.ID)
	return nil
}

func runPositionMark(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	price, err := parseDecimal("price", args[1])
	if err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.Positions.UpdateMarketPrice(context.Background(), user, args[0], price)
	if err != nil {
		return fmt.Errorf("mark position: %w", err)
	}

	fmt.Printf("✓ Marked %s @ %s: gross %s, net %s %s\n",
		p.Symbol, p.CurrentPrice, p.GrossPL.StringFixed(2), p.NetPL.StringFixed(2), p.Currency)
	return nil
}

func runPositionClose(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	price, err := parseDecimal("price", args[1])
	if err != nil {
		return err
	}
	at, err := parseTime("at", posAt)
	if err != nil {
		return err
	}
	commission, err := parseDecimal("commission", posCommission)
	if err != nil {
		return err
	}
	taxes, err := parseDecimal("taxes", posTaxes)
	if err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.Positions.Close(context.Background(), user, args[0], position.CloseSpec{
		Price:           price,
		Time:            at,
		ExtraCommission: commission,
		ExtraTaxes:      taxes,
		Note:            posNote,
	})
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}

	fmt.Printf("✓ Closed %s @ %s: gross %s, net %s %s\n",
		p.Symbol, p.ClosePrice, p.GrossPL.StringFixed(2), p.NetPL.StringFixed(2), p.Currency)
	return nil
}

func runPositionUpdate(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	patch := position.Patch{Comment: changedString(cmd, "comment", posComment)}
	if patch.StopLoss, err = changedDecimal(cmd, "stop-loss", posStopLoss); err != nil {
		return err
	}
	if patch.TakeProfit, err = changedDecimal(cmd, "take-profit", posTakeProfit); err != nil {
		return err
	}
	if patch.Swap, err = changedDecimal(cmd, "swap", posSwap); err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.Positions.Update(context.Background(), user, args[0], patch)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	fmt.Printf("✓ Updated %s (net %s %s)\n", p.ID, p.NetPL.StringFixed(2), p.Currency)
	return nil
}

func runPositionDelete(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := context.Background()
	if posHard {
		if err := b.Positions.HardDelete(ctx, user, args[0]); err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		fmt.Printf("✓ Removed position %s\n", args[0])
		return nil
	}

	if _, err := b.Positions.SoftDelete(ctx, user, args[0], posReason); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	fmt.Printf("✓ Deleted position %s\n", args[0])
	return nil
}

func runPositionShow(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.Positions.Get(context.Background(), user, args[0])
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}

	if posOrg {
		fmt.Println(journal.FormatPositionOrg(p))
		return nil
	}
	printPosition(p)
	return nil
}

func runPositionList(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	list, err := b.Positions.List(context.Background(), user, position.ListFilter{
		Statuses:    typed[position.Status](splitList(posStatus)),
		Symbol:      posSymbol,
		PortfolioID: posPortfolio,
		Limit:       posLimit,
	})
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	if posOrg {
		fmt.Println(journal.FormatPositionsOrg(list))
		return nil
	}
	if len(list) == 0 {
		fmt.Println("No positions")
		return nil
	}
	for _, p := range list {
		fmt.Printf("%-8s %-4s %10s %-10s @ %-10s net %12s %s  %s\n",
			p.Status, p.Side, p.Volume, p.Symbol, p.OpenPrice, p.NetPL.StringFixed(2), p.Currency, p.ID)
	}
	return nil
}

func runPositionSummary(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	sum, err := b.Positions.Summary(context.Background(), user)
	if err != nil {
		return fmt.Errorf("summarize positions: %w", err)
	}

	if len(sum) == 0 {
		fmt.Println("No positions")
		return nil
	}
	for _, s := range sum {
		fmt.Printf("%s  open %d (unrealized %s)  closed %d (gross %s, net %s)  commission %s  taxes %s\n",
			s.Currency, s.Open, s.UnrealizedPL.StringFixed(2), s.Closed,
			s.RealizedGrossPL.StringFixed(2), s.RealizedNetPL.StringFixed(2),
			s.Commission.StringFixed(2), s.Taxes.StringFixed(2))
	}
	return nil
}

func printPosition(p *position.Position) {
	fmt.Printf("Position %s\n", p.ID)
	fmt.Printf("  Symbol:     %s %s %s\n", p.Side, p.Volume, p.Symbol)
	fmt.Printf("  Status:     %s\n", p.Status)
	fmt.Printf("  Opened:     %s @ %s\n", p.OpenTime.Local().Format("2006-01-02 15:04:05"), p.OpenPrice)
	if p.CloseTime != nil && p.ClosePrice != nil {
		fmt.Printf("  Closed:     %s @ %s\n", p.CloseTime.Local().Format("2006-01-02 15:04:05"), p.ClosePrice)
	} else {
		fmt.Printf("  Price:      %s\n", p.CurrentPrice)
	}
	fmt.Printf("  Gross P/L:  %s %s\n", p.GrossPL.StringFixed(2), p.Currency)
	fmt.Printf("  Net P/L:    %s %s\n", p.NetPL.StringFixed(2), p.Currency)
	fmt.Printf("  Costs:      commission %s, swap %s, taxes %s\n",
		p.Commission.StringFixed(2), p.Swap.StringFixed(2), p.Taxes.StringFixed(2))
	if p.SourceOrderID != "" {
		fmt.Printf("  From order: %s\n", p.SourceOrderID)
	}
	if p.Comment != "" {
		fmt.Printf("  Comment:    %s\n", p.Comment)
	}
}
