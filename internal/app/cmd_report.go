package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/report"
)

var errNoDatabase = errors.New("DATABASE_URL is not set; report archives require PostgreSQL")

// reportFlags はreportコマンドの絞り込み条件。
type reportFlags struct {
	category   int64
	status     string
	stock      string
	priceRange string
	search     string
	from       string
	to         string
	sortBy     string
}

func (f reportFlags) filter(loc *time.Location) (report.Filter, error) {
	var (
		out report.Filter
		err error
	)
	out.CategoryID = f.category
	out.Search = f.search
	if out.Status, err = report.ParseStatus(f.status); err != nil {
		return out, model.NewValidationError("status", err.Error())
	}
	if out.StockLevel, err = report.ParseStockLevel(f.stock); err != nil {
		return out, model.NewValidationError("stock", err.Error())
	}
	if out.PriceRange, err = report.ParsePriceRange(f.priceRange); err != nil {
		return out, model.NewValidationError("price", err.Error())
	}
	if out.SortBy, err = report.ParseSortBy(f.sortBy); err != nil {
		return out, model.NewValidationError("sort", err.Error())
	}
	if out.DateFrom, err = report.ParseDate(f.from, loc); err != nil {
		return out, model.NewValidationError("from", err.Error())
	}
	if out.DateTo, err = report.ParseDate(f.to, loc); err != nil {
		return out, model.NewValidationError("to", err.Error())
	}
	if !out.DateFrom.IsZero() && !out.DateTo.IsZero() && out.DateTo.Before(out.DateFrom) {
		return out, model.NewValidationError("to", "must not be before from")
	}
	return out, nil
}

func (c *cli) reportCommand() *cobra.Command {
	var (
		flags   reportFlags
		asJSON  bool
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a product inventory report",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter(time.Local)
			if err != nil {
				return err
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			if archive && a.Reports == nil {
				return errNoDatabase
			}

			snap, err := report.Fetch(cmd.Context(), a.Client, time.Now())
			if err != nil {
				return err
			}
			rep := report.Generate(snap, f)
			a.Metrics.RecordReportGenerated(len(rep.Products))
			for _, w := range rep.Summary.Warnings {
				a.Logger.Warn("金額を解釈できませんでした", slog.String("warning", w.String()))
			}

			if asJSON {
				err = report.WriteJSON(c.stdout, rep)
			} else {
				err = report.WriteText(c.stdout, rep)
			}
			if err != nil {
				return err
			}

			if archive {
				id, err := a.Reports.Save(cmd.Context(), rep)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stderr, "Archived report #%d\n", id)
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&flags.category, "category", 0, "Category ID")
	cmd.Flags().StringVar(&flags.status, "status", "all", "Status: all, active, inactive")
	cmd.Flags().StringVar(&flags.stock, "stock", "all", "Stock level: all, out-of-stock, low-stock, in-stock")
	cmd.Flags().StringVar(&flags.priceRange, "price", "all", "Price range: all, under-10000, 10000-50000, over-50000")
	cmd.Flags().StringVar(&flags.search, "search", "", "Match product name, code or description")
	cmd.Flags().StringVar(&flags.from, "from", "", "Created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.to, "to", "", "Created on or before (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.sortBy, "sort", "name", "Sort: name, price, cost, quantity, profit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&archive, "archive", false, "Store the report summary in PostgreSQL")

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List archived reports",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			if a.Reports == nil {
				return errNoDatabase
			}
			archives, err := a.Reports.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := newTable(c.stdout)
			fmt.Fprintln(tw, "ID\tGENERATED\tPRODUCTS\tQUANTITY\tRETAIL VALUE\tPROFIT\tWARNINGS")
			for _, ar := range archives {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%d\n",
					ar.ID, ar.GeneratedAt.Local().Format("2006-01-02 15:04"), ar.TotalProducts, ar.TotalQuantity,
					report.FormatCurrency(ar.RetailValue), report.FormatCurrency(ar.PotentialProfit), ar.WarningCount)
			}
			return tw.Flush()
		}),
	}
	history.Flags().IntVar(&limit, "limit", 20, "Number of reports to list")

	show := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show an archived report summary as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "report_id")
			if err != nil {
				return err
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			if a.Reports == nil {
				return errNoDatabase
			}
			ar, err := a.Reports.FindByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ar == nil {
				return fmt.Errorf("report %d not found", id)
			}
			enc := json.NewEncoder(c.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ar)
		}),
	}

	cmd.AddCommand(history, show)
	return cmd
}
