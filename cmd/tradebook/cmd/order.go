package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/order"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Place, fill and cancel pending orders",
	Long: `Manage pending orders. A fill that completes an order opens a position.

Subcommands:
  create   - Place an order
  update   - Change price, stop price, volume, expiry or comment
  execute  - Record a full or partial fill
  cancel   - Cancel an active order
  expire   - Expire every overdue order (all users)
  show     - Show one order
  list     - List orders

Examples:
  tradebook order create MSFT buy 100 --kind limit --price 410 --currency USD -u alice
  tradebook order execute <id> 410 --volume 40 -u alice
  tradebook order expire`,
}

var orderCreateCmd = &cobra.Command{
	Use:   "create <symbol> <buy|sell> <volume>",
	Short: "Place an order",
	Args:  cobra.ExactArgs(3),
	RunE:  runOrderCreate,
}

var orderUpdateCmd = &cobra.Command{
	Use:   "update <order-id>",
	Short: "Update an active order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderUpdate,
}

var orderExecuteCmd = &cobra.Command{
	Use:   "execute <order-id> <price>",
	Short: "Record a fill",
	Long: `Record a fill at price. Without --volume the whole remaining volume is
filled. The order's execution record keeps only the latest fill.`,
	Args: cobra.ExactArgs(2),
	RunE: runOrderExecute,
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel an active order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderCancel,
}

var orderExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire overdue orders for every user",
	Args:  cobra.NoArgs,
	RunE:  runOrderExpire,
}

var orderShowCmd = &cobra.Command{
	Use:   "show <order-id>",
	Short: "Show an order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderShow,
}

var orderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders",
	Args:  cobra.NoArgs,
	RunE:  runOrderList,
}

var (
	ordKind        string
	ordPrice       string
	ordStopPrice   string
	ordVolume      string
	ordCurrency    string
	ordPortfolio   string
	ordExpiry      string
	ordClearExpiry bool
	ordComment     string
	ordCommission  string
	ordFees        string
	ordAt          string
	ordNoPosition  bool
	ordReason      string
	ordNow         string
	ordStatus      string
	ordSymbol      string
	ordLimit       int
)

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.AddCommand(orderCreateCmd, orderUpdateCmd, orderExecuteCmd, orderCancelCmd,
		orderExpireCmd, orderShowCmd, orderListCmd)

	orderCreateCmd.Flags().StringVar(&ordKind, "kind", string(order.Market), "market, limit, stop or stop_limit")
	orderCreateCmd.Flags().StringVar(&ordPrice, "price", "", "limit price")
	orderCreateCmd.Flags().StringVar(&ordStopPrice, "stop-price", "", "stop price")
	orderCreateCmd.Flags().StringVar(&ordCurrency, "currency", "USD", "currency the order is priced in")
	orderCreateCmd.Flags().StringVar(&ordPortfolio, "portfolio", "", "portfolio id")
	orderCreateCmd.Flags().StringVar(&ordExpiry, "expiry", "", "expiry time (RFC3339 or YYYY-MM-DD)")
	orderCreateCmd.Flags().StringVar(&ordComment, "comment", "", "free text")

	orderUpdateCmd.Flags().StringVar(&ordPrice, "price", "", "new price")
	orderUpdateCmd.Flags().StringVar(&ordStopPrice, "stop-price", "", "new stop price")
	orderUpdateCmd.Flags().StringVar(&ordVolume, "volume", "", "new volume (never above the current one)")
	orderUpdateCmd.Flags().StringVar(&ordExpiry, "expiry", "", "new expiry time")
	orderUpdateCmd.Flags().BoolVar(&ordClearExpiry, "clear-expiry", false, "remove the expiry")
	orderUpdateCmd.Flags().StringVar(&ordComment, "comment", "", "replace the comment")

	orderExecuteCmd.Flags().StringVar(&ordVolume, "volume", "", "volume filled (default all remaining)")
	orderExecuteCmd.Flags().StringVar(&ordCommission, "commission", "", "commission charged on the fill")
	orderExecuteCmd.Flags().StringVar(&ordFees, "fees", "", "fees charged on the fill")
	orderExecuteCmd.Flags().StringVar(&ordAt, "at", "", "fill time (default now)")
	orderExecuteCmd.Flags().BoolVar(&ordNoPosition, "no-position", false, "do not open a position on a full fill")

	orderCancelCmd.Flags().StringVar(&ordReason, "reason", "", "why it was cancelled")

	orderExpireCmd.Flags().StringVar(&ordNow, "now", "", "expire orders due before this time (default now)")

	orderListCmd.Flags().StringVar(&ordStatus, "status", "", "comma separated statuses")
	orderListCmd.Flags().StringVar(&ordSymbol, "symbol", "", "only this symbol")
	orderListCmd.Flags().StringVar(&ordPortfolio, "portfolio", "", "only this portfolio")
	orderListCmd.Flags().IntVar(&ordLimit, "limit", 0, "at most this many orders")
}

func runOrderCreate(cmd *cobra.Command, args []string) error {
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
	price, err := parseDecimal("price", ordPrice)
	if err != nil {
		return err
	}
	stop, err := parseDecimal("stop-price", ordStopPrice)
	if err != nil {
		return err
	}
	expiry, err := parseTimePtr("expiry", ordExpiry)
	if err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	o, err := b.Orders.Create(context.Background(), user, order.CreateSpec{
		Symbol:      args[0],
		Kind:        order.Kind(ordKind),
		Side:        side,
		Volume:      volume,
		Price:       price,
		StopPrice:   stop,
		Currency:    ordCurrency,
		PortfolioID: ordPortfolio,
		ExpiryTime:  expiry,
		Comment:     ordComment,
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	fmt.Printf("✓ Placed %s %s %s %s (%s)\n", o.Kind, o.Side, o.Volume, o.Symbol, o.ID)
	return nil
}

func runOrderUpdate(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	patch := order.Patch{
		ClearExpiry: ordClearExpiry,
		Comment:     changedString(cmd, "comment", ordComment),
	}
	if patch.Price, err = changedDecimal(cmd, "price", ordPrice); err != nil {
		return err
	}
	if patch.StopPrice, err = changedDecimal(cmd, "stop-price", ordStopPrice); err != nil {
		return err
	}
	if patch.Volume, err = changedDecimal(cmd, "volume", ordVolume); err != nil {
		return err
	}
	if patch.ExpiryTime, err = parseTimePtr("expiry", ordExpiry); err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	o, err := b.Orders.Update(context.Background(), user, args[0], patch)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	fmt.Printf("✓ Updated %s: %s %s @ %s\n", o.ID, o.Volume, o.Symbol, o.Price)
	return nil
}

func runOrderExecute(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	spec := order.ExecuteSpec{}
	if spec.Price, err = parseDecimal("price", args[1]); err != nil {
		return err
	}
	if spec.Volume, err = changedDecimal(cmd, "volume", ordVolume); err != nil {
		return err
	}
	if spec.Commission, err = parseDecimal("commission", ordCommission); err != nil {
		return err
	}
	if spec.Fees, err = parseDecimal("fees", ordFees); err != nil {
		return err
	}
	if spec.Time, err = parseTime("at", ordAt); err != nil {
		return err
	}
	if ordNoPosition {
		no := false
		spec.CreatePosition = &no
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.Orders.Execute(context.Background(), user, args[0], spec)
	if err != nil {
		return fmt.Errorf("execute order: %w", err)
	}

	fmt.Printf("✓ Filled %s %s @ %s, %s remaining (%s)\n",
		res.Order.Execution.ExecutedVolume, res.Order.Symbol, spec.Price, res.Remaining, res.Order.Status)
	switch res.PositionOutcome {
	case order.PositionSucceeded:
		fmt.Printf("  Position: %s\n", res.Position.ID)
		if res.PositionErr != nil {
			fmt.Printf("  Warning: %v\n", res.PositionErr)
		}
	case order.PositionFailed:
		fmt.Printf("  Position not opened: %v\n", res.PositionErr)
	}
	return nil
}

func runOrderCancel(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	o, err := b.Orders.Cancel(context.Background(), user, args[0], ordReason)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	fmt.Printf("✓ Cancelled %s (%s of %s filled)\n", o.ID, o.Filled(), o.OriginalVolume)
	return nil
}

func runOrderExpire(cmd *cobra.Command, args []string) error {
	now := time.Now()
	if ordNow != "" {
		t, err := parseTime("now", ordNow)
		if err != nil {
			return err
		}
		now = t
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	ids, err := b.Orders.ExpireSweep(context.Background(), now)
	for _, id := range ids {
		fmt.Printf("  expired %s\n", id)
	}
	fmt.Printf("✓ Expired %d orders\n", len(ids))
	if err != nil {
		return fmt.Errorf("expire sweep: %w", err)
	}
	return nil
}

func runOrderShow(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	o, err := b.Orders.Get(context.Background(), user, args[0])
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	printOrder(o)
	return nil
}

func runOrderList(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	list, err := b.Orders.List(context.Background(), user, order.ListFilter{
		Statuses:    typed[order.Status](splitList(ordStatus)),
		Symbol:      ordSymbol,
		PortfolioID: ordPortfolio,
		Limit:       ordLimit,
	})
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No orders")
		return nil
	}
	for _, o := range list {
		fmt.Printf("%-9s %-10s %-4s %10s/%-10s %-10s @ %-10s %s  %s\n",
			o.Status, o.Kind, o.Side, o.Volume, o.OriginalVolume, o.Symbol, o.Price, o.Currency, o.ID)
	}
	return nil
}

func printOrder(o *order.Order) {
	fmt.Printf("Order %s\n", o.ID)
	fmt.Printf("  Symbol:    %s %s %s\n", o.Kind, o.Side, o.Symbol)
	fmt.Printf("  Status:    %s\n", o.Status)
	fmt.Printf("  Volume:    %s remaining of %s\n", o.Volume, o.OriginalVolume)
	fmt.Printf("  Price:     %s (stop %s) %s\n", o.Price, o.StopPrice, o.Currency)
	if o.ExpiryTime != nil {
		fmt.Printf("  Expires:   %s\n", o.ExpiryTime.Local().Format("2006-01-02 15:04:05"))
	}
	if e := o.Execution; e != nil {
		fmt.Printf("  Last fill: %s @ %s on %s\n", e.ExecutedVolume, e.ExecutedPrice, e.ExecutedTime.Local().Format("2006-01-02 15:04:05"))
		if e.ResultingPositionID != "" {
			fmt.Printf("  Position:  %s\n", e.ResultingPositionID)
		}
	}
	if o.Comment != "" {
		fmt.Printf("  Comment:   %s\n", o.Comment)
	}
}
