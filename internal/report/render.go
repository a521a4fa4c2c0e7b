package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hitoshi/guestdesk/internal/model"
)

// DetailLimit は詳細表に表示する商品数の上限。
const DetailLimit = 50

var printer = message.NewPrinter(language.English)

// FormatCurrency は金額を "RWF 1,200" の形式で表す。小数点以下は四捨五入する。
func FormatCurrency(d decimal.Decimal) string {
	return printer.Sprintf("RWF %d", d.Round(0).IntPart())
}

// FormatPercent は百分率を小数点以下1桁で表す。
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

// StockLevelText は在庫区分の表示名を返す。
func StockLevelText(quantity int) string {
	switch StockLevelOf(quantity) {
	case StockOut:
		return "Out of Stock"
	case StockLow:
		return "Low Stock"
	default:
		return "In Stock"
	}
}

// DateRangeLabel は期間指定の見出しを返す。
func DateRangeLabel(f Filter) string {
	const layout = "January 2, 2006"
	switch {
	case !f.DateFrom.IsZero() && !f.DateTo.IsZero():
		return f.DateFrom.Format(layout) + " - " + f.DateTo.Format(layout)
	case !f.DateFrom.IsZero():
		return "From " + f.DateFrom.Format(layout)
	case !f.DateTo.IsZero():
		return "Until " + f.DateTo.Format(layout)
	default:
		return "All Time"
	}
}

// WriteJSON はレポートをJSONで書き出す。
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("レポートのJSON出力に失敗しました: %w", err)
	}
	return nil
}

// WriteText はレポートを端末向けの表形式で書き出す。
func WriteText(w io.Writer, r Report) error {
	s := r.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Product Report\t%s\n", DateRangeLabel(r.Filter))
	fmt.Fprintf(tw, "Generated\t%s\n\n", r.GeneratedAt.Format("2006-01-02 15:04"))

	fmt.Fprintf(tw, "Total products\t%d\t(active %d, inactive %d)\n", s.TotalProducts, s.ActiveProducts, s.InactiveProducts)
	fmt.Fprintf(tw, "Total quantity\t%d\n", s.TotalQuantity)
	fmt.Fprintf(tw, "Inventory value\t%s\n", FormatCurrency(s.TotalInventoryValue))
	fmt.Fprintf(tw, "Retail value\t%s\n", FormatCurrency(s.TotalRetailValue))
	fmt.Fprintf(tw, "Potential profit\t%s\n", FormatCurrency(s.TotalPotentialProfit))
	fmt.Fprintf(tw, "Average price\t%s\n", FormatCurrency(s.AveragePrice))
	fmt.Fprintf(tw, "Average cost\t%s\n", FormatCurrency(s.AverageCost))
	fmt.Fprintf(tw, "Average margin\t%s\n", FormatPercent(s.AverageProfitMargin))
	fmt.Fprintf(tw, "Stock levels\tout %d\tlow %d\tin %d\n\n",
		s.StockLevels.OutOfStock, s.StockLevels.LowStock, s.StockLevels.InStock)

	if len(s.Categories) > 0 {
		fmt.Fprintln(tw, "CATEGORY\tPRODUCTS\tQUANTITY\tVALUE")
		for _, c := range s.Categories {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", c.Name, c.ProductCount, c.TotalQuantity, FormatCurrency(c.TotalValue))
		}
		fmt.Fprintln(tw)
	}

	writeRanking(tw, "TOP BY VALUE", s.TopByValue, func(p RankedProduct) string { return FormatCurrency(p.TotalValue) })
	writeRanking(tw, "TOP BY QUANTITY", s.TopByQuantity, func(p RankedProduct) string { return fmt.Sprint(p.Quantity) })
	writeRanking(tw, "TOP BY PROFIT", s.TopByProfit, func(p RankedProduct) string { return FormatCurrency(p.TotalProfit) })

	fmt.Fprintln(tw, "CODE\tNAME\tPRICE\tCOST\tQTY\tSTOCK\tSTATUS")
	for i, p := range r.Products {
		if i == DetailLimit {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			p.ProductCode, p.Name,
			FormatCurrency(moneyOf(p.Price)), FormatCurrency(moneyOf(p.Cost)),
			p.Quantity, StockLevelText(p.Quantity), statusText(p))
	}
	if len(r.Products) > DetailLimit {
		fmt.Fprintf(tw, "\nShowing first %d products of %d total products.\n", DetailLimit, len(r.Products))
	}

	for _, warn := range s.Warnings {
		fmt.Fprintf(tw, "warning: %s\n", warn)
	}
	return tw.Flush()
}

func writeRanking(w io.Writer, title string, items []RankedProduct, metric func(RankedProduct) string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for i, p := range items {
		fmt.Fprintf(w, "%d.\t%s\t%s\n", i+1, p.Name, metric(p))
	}
	fmt.Fprintln(w)
}

func statusText(p model.Product) string {
	if p.IsActive {
		return "Active"
	}
	return "Inactive"
}
