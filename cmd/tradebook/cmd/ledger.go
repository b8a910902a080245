package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Record cash movements and report balances",
	Long: `Record and query cash ledger entries.

Subcommands:
  add      - Record an entry
  list     - List entries
  balance  - Per-currency balances
  flows    - Per-currency, per-type cash-flow totals
  export   - Write entries as CSV

Examples:
  tradebook ledger add deposit 1000 USD -u alice
  tradebook ledger balance -u alice --to 2024-06-30
  tradebook ledger export -u alice -o ledger.csv`,
}

var ledgerAddCmd = &cobra.Command{
	Use:   "add <type> <amount> <currency>",
	Short: "Record a ledger entry",
	Long: `Record a cash entry. Deposits, dividends, interest and bonuses add to
the balance and withdrawals and fees subtract from it, whatever the sign
given. Transfers and adjustments keep the sign given.`,
	Args: cobra.ExactArgs(3),
	RunE: runLedgerAdd,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger entries",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

var ledgerBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show per-currency balances",
	Args:  cobra.NoArgs,
	RunE:  runLedgerBalance,
}

var ledgerFlowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Show cash-flow totals per currency and type",
	Args:  cobra.NoArgs,
	RunE:  runLedgerFlows,
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export ledger entries as CSV",
	Args:  cobra.NoArgs,
	RunE:  runLedgerExport,
}

var ledgerDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Remove a ledger entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerDelete,
}

var (
	ledgerAt       string
	ledgerStatus   string
	ledgerComment  string
	ledgerSymbol   string
	ledgerTypes    string
	ledgerCurrency string
	ledgerFrom     string
	ledgerTo       string
	ledgerLimit    int
	ledgerOutput   string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerAddCmd, ledgerListCmd, ledgerBalanceCmd, ledgerFlowsCmd, ledgerExportCmd, ledgerDeleteCmd)

	ledgerAddCmd.Flags().StringVar(&ledgerAt, "at", "", "when it happened (RFC3339 or YYYY-MM-DD, default now)")
	ledgerAddCmd.Flags().StringVar(&ledgerStatus, "status", "", "pending, completed, failed or cancelled (default completed)")
	ledgerAddCmd.Flags().StringVar(&ledgerComment, "comment", "", "free text")
	ledgerAddCmd.Flags().StringVar(&ledgerSymbol, "symbol", "", "instrument the entry relates to")

	for _, c := range []*cobra.Command{ledgerListCmd, ledgerBalanceCmd, ledgerFlowsCmd, ledgerExportCmd} {
		c.Flags().StringVar(&ledgerCurrency, "currency", "", "only this currency")
		c.Flags().StringVar(&ledgerTo, "to", "", "up to and including (RFC3339 or YYYY-MM-DD)")
		c.Flags().StringVar(&ledgerStatus, "status", "", "entry status (balance and flows default to completed)")
	}
	for _, c := range []*cobra.Command{ledgerListCmd, ledgerFlowsCmd, ledgerExportCmd} {
		c.Flags().StringVar(&ledgerFrom, "from", "", "from and including (RFC3339 or YYYY-MM-DD)")
	}
	for _, c := range []*cobra.Command{ledgerListCmd, ledgerExportCmd} {
		c.Flags().StringVar(&ledgerTypes, "type", "", "comma separated entry types")
		c.Flags().StringVar(&ledgerSymbol, "symbol", "", "only this symbol")
	}
	ledgerListCmd.Flags().IntVar(&ledgerLimit, "limit", 0, "at most this many entries")
	ledgerExportCmd.Flags().StringVarP(&ledgerOutput, "output", "o", "", "CSV file to write (default stdout)")
}

func runLedgerAdd(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	amount, err := parseDecimal("amount", args[1])
	if err != nil {
		return err
	}
	at, err := parseTime("at", ledgerAt)
	if err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	e, err := b.Ledger.Record(context.Background(), user, ledger.NewEntry{
		Type:       ledger.EntryType(args[0]),
		Amount:     amount,
		Currency:   args[2],
		OccurredAt: at,
		Status:     ledger.EntryStatus(ledgerStatus),
		Comment:    ledgerComment,
		Symbol:     ledgerSymbol,
	})
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}

	fmt.Printf("✓ Recorded %s %s %s (%s)\n", e.Type, e.Amount, e.Currency, e.ID)
	return nil
}

func ledgerFilter() (ledger.Filter, error) {
	from, err := parseTimePtr("from", ledgerFrom)
	if err != nil {
		return ledger.Filter{}, err
	}
	upTo, err := parseTimePtr("to", ledgerTo)
	if err != nil {
		return ledger.Filter{}, err
	}
	f := ledger.Filter{
		Types:    typed[ledger.EntryType](splitList(ledgerTypes)),
		Currency: ledgerCurrency,
		Symbol:   ledgerSymbol,
		From:     from,
		UpTo:     dayEnd(ledgerTo, upTo),
		Limit:    ledgerLimit,
	}
	if ledgerStatus != "" {
		f.Statuses = []ledger.EntryStatus{ledger.EntryStatus(ledgerStatus)}
	}
	return f, nil
}

func listLedger(user string) ([]*ledger.Entry, error) {
	f, err := ledgerFilter()
	if err != nil {
		return nil, err
	}
	b, err := openBooks()
	if err != nil {
		return nil, err
	}
	defer b.Close()

	entries, err := b.Ledger.List(context.Background(), user, f)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	entries, err := listLedger(user)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No entries")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-10s %12s %s  %-9s %s %s\n",
			e.OccurredAt.Local().Format("2006-01-02 15:04"), e.Type, e.Contribution().StringFixed(2),
			e.Currency, e.Status, e.ID, e.Comment)
	}
	return nil
}

func runLedgerBalance(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	upTo, err := parseTimePtr("to", ledgerTo)
	if err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	bal, err := b.Aggregator.ComputeBalances(context.Background(), user, ledger.BalanceQuery{
		Currency: ledgerCurrency,
		UpTo:     dayEnd(ledgerTo, upTo),
		Status:   ledger.EntryStatus(ledgerStatus),
	})
	if err != nil {
		return fmt.Errorf("compute balances: %w", err)
	}

	if len(bal) == 0 {
		fmt.Println("No balances")
		return nil
	}
	for _, cb := range bal {
		fmt.Printf("%s %14s  (in %s, out %s, %d entries)\n",
			cb.Currency, cb.Balance.StringFixed(2), cb.TotalInflow.StringFixed(2), cb.TotalOutflow.StringFixed(2), cb.Count)
	}
	return nil
}

func runLedgerFlows(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	from, err := parseTimePtr("from", ledgerFrom)
	if err != nil {
		return err
	}
	upTo, err := parseTimePtr("to", ledgerTo)
	if err != nil {
		return err
	}

	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	flows, err := b.Aggregator.ComputeFlows(context.Background(), user, ledger.FlowQuery{
		Currency: ledgerCurrency,
		From:     from,
		UpTo:     dayEnd(ledgerTo, upTo),
		Status:   ledger.EntryStatus(ledgerStatus),
	})
	if err != nil {
		return fmt.Errorf("compute flows: %w", err)
	}

	if len(flows) == 0 {
		fmt.Println("No cash flows")
		return nil
	}
	for _, fl := range flows {
		fmt.Printf("%s %-10s total %12s  net %12s  (%d)\n",
			fl.Currency, fl.Type, fl.Total.StringFixed(2), fl.Net.StringFixed(2), fl.Count)
	}
	return nil
}

func runLedgerExport(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	entries, err := listLedger(user)
	if err != nil {
		return err
	}

	if ledgerOutput == "" {
		return journal.WriteEntriesCSV(os.Stdout, entries)
	}

	f, err := os.Create(ledgerOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", ledgerOutput, err)
	}
	if err := journal.WriteEntriesCSV(f, entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("✓ Exported %d entries to %s\n", len(entries), ledgerOutput)
	return nil
}

func runLedgerDelete(cmd *cobra.Command, args []string) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	b, err := openBooks()
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Ledger.Delete(context.Background(), user, args[0]); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	fmt.Printf("✓ Deleted entry %s\n", args[0])
	return nil
}
