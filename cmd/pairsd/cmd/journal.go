package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soumyarai2050/Flux-sub002/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query order-event and fill ledger data",
	Long: `Query and display ledger records from the SQLite database.

Subcommands:
  order  - List the event history of a specific order
  events - List order events recorded for a strategy
  fills  - List fills recorded for a strategy

Examples:
  pairsd journal order <order-id>
  pairsd journal events <strategy-id>
  pairsd journal fills <strategy-id>`,
}

var journalOrderCmd = &cobra.Command{
	Use:   "order <order-id>",
	Short: "List the event history of a specific order",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrder,
}

var journalEventsCmd = &cobra.Command{
	Use:   "events <strategy-id>",
	Short: "List order events recorded for a strategy",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEvents,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills <strategy-id>",
	Short: "List fills recorded for a strategy",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalFills,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalOrderCmd)
	journalCmd.AddCommand(journalEventsCmd)
	journalCmd.AddCommand(journalFillsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./pairs.sqlite", "path to SQLite ledger DB")
}

func runJournalOrder(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListOrderEvents(args[0])
	if err != nil {
		return fmt.Errorf("query order: %w", err)
	}
	printOrderEvents(recs)
	return nil
}

func runJournalEvents(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListOrderEventsByStrategy(args[0])
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	printOrderEvents(recs)
	return nil
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListFillsByStrategy(args[0])
	if err != nil {
		return fmt.Errorf("query fills: %w", err)
	}
	for _, f := range recs {
		fmt.Printf("%s  %-14s %-10s %-4s qty=%-10.2f px=%-10.4f order=%s\n",
			f.FillTime.Format("2006-01-02 15:04:05.000"),
			f.FillID, f.FillSymbol, f.FillSide, f.FillQty, f.FillPx, f.OrderID)
	}
	return nil
}

func printOrderEvents(recs []journal.OrderRecord) {
	for _, r := range recs {
		fmt.Printf("%s  %-14s %-10s %-4s qty=%-10.2f px=%-10.4f order=%s %s\n",
			r.Time.Format("2006-01-02 15:04:05.000"),
			r.Event, r.Symbol, r.Side, r.Qty, r.Px, r.OrderID, r.Text)
	}
}
