package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buildlink-za/sitevoice/pkg/cli"
	"github.com/buildlink-za/sitevoice/pkg/marketplace"
	"github.com/buildlink-za/sitevoice/pkg/store"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Browse the materials catalog and project ledger",
	Long: `Browse the on-device marketplace data the assistant's tools work
against: the materials catalog, the project list, and per-project
expenses.

The data lives in ~/.sitevoice/data and is shared with live sessions.`,
}

// openMarket opens the shared marketplace store. The caller must close
// the returned store.
func openMarket() (*marketplace.Service, store.KV, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	kv, err := store.OpenBadger(paths.DataPath("market"))
	if err != nil {
		return nil, nil, err
	}
	svc := marketplace.New(kv)
	if err := svc.Seed(context.Background()); err != nil {
		kv.Close()
		return nil, nil, err
	}
	return svc, kv, nil
}

var marketSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the materials catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := cmd.Flags().GetString("category")
		if err != nil {
			return fmt.Errorf("failed to read 'category' flag: %w", err)
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return fmt.Errorf("failed to read 'limit' flag: %w", err)
		}

		svc, kv, err := openMarket()
		if err != nil {
			return err
		}
		defer kv.Close()

		materials, err := svc.SearchCatalog(cmd.Context(), args[0], category, limit)
		if err != nil {
			return err
		}
		if outputJSON || outputFile != "" {
			return outputResult(materials)
		}

		if len(materials) == 0 {
			fmt.Println("No materials matched")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SKU\tNAME\tCATEGORY\tSUPPLIER\tUNIT\tPRICE")
		for _, m := range materials {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				m.SKU, m.Name, m.Category, m.Supplier, m.Unit, marketplace.FormatRand(m.UnitPriceCents))
		}
		return w.Flush()
	},
}

var marketProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, kv, err := openMarket()
		if err != nil {
			return err
		}
		defer kv.Close()

		projects, err := svc.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON || outputFile != "" {
			return outputResult(projects)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSITE\tBUDGET")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Site, marketplace.FormatRand(p.BudgetCents))
		}
		return w.Flush()
	},
}

var marketExpensesCmd = &cobra.Command{
	Use:   "expenses <project-id>",
	Short: "List expenses recorded against a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, kv, err := openMarket()
		if err != nil {
			return err
		}
		defer kv.Close()

		expenses, err := svc.ProjectExpenses(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputJSON || outputFile != "" {
			return outputResult(expenses)
		}

		var total int64
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDESCRIPTION\tAMOUNT")
		for _, e := range expenses {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Description, marketplace.FormatRand(e.AmountCents))
			total += e.AmountCents
		}
		fmt.Fprintf(w, "\tTOTAL\t%s\n", marketplace.FormatRand(total))
		return w.Flush()
	},
}

var marketRecordCmd = &cobra.Command{
	Use:   "record <project-id> <description> <amount-rand>",
	Short: "Record an expense against a project",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var amount float64
		if _, err := fmt.Sscanf(args[2], "%f", &amount); err != nil {
			return fmt.Errorf("amount %q is not a number", args[2])
		}

		svc, kv, err := openMarket()
		if err != nil {
			return err
		}
		defer kv.Close()

		exp, err := svc.RecordExpense(cmd.Context(), args[0], args[1], int64(amount*100))
		if err != nil {
			return err
		}
		cli.PrintSuccess("Recorded %s against %s (%s)",
			marketplace.FormatRand(exp.AmountCents), args[0], exp.ID)
		return nil
	},
}

func init() {
	marketSearchCmd.Flags().String("category", "", "Restrict to a catalog category")
	marketSearchCmd.Flags().Int("limit", 10, "Maximum results")

	marketCmd.AddCommand(marketSearchCmd)
	marketCmd.AddCommand(marketProjectsCmd)
	marketCmd.AddCommand(marketExpensesCmd)
	marketCmd.AddCommand(marketRecordCmd)
}
