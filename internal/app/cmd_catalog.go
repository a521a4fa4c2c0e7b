package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitoshi/guestdesk/internal/apiclient"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/report"
)

// formatMoney はサーバーの金額文字列を表示用に整形する。
func formatMoney(m model.Money) string {
	d, _ := report.ParseMoney(m)
	return report.FormatCurrency(d)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func (c *cli) roomsCommand() *cobra.Command {
	var available bool
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			rooms, err := a.Client.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			if available {
				rooms = apiclient.FilterAvailableRooms(rooms)
			}

			tw := newTable(c.stdout)
			fmt.Fprintln(tw, "ROOM\tCATEGORY\tCAPACITY\tPRICE/NIGHT\tSTATUS")
			for _, r := range rooms {
				status := "Available"
				switch {
				case !r.IsActive:
					status = "Inactive"
				case r.Reserved:
					status = "Reserved"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.RoomCode, r.Category, r.Capacity, formatMoney(r.PricePerNight), status)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVar(&available, "available", false, "Only rooms that are active and not reserved")
	return cmd
}

func (c *cli) productsCommand() *cobra.Command {
	var showImages bool
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			products, err := a.Client.ListProducts(cmd.Context())
			if err != nil {
				return err
			}

			tw := newTable(c.stdout)
			header := "ID\tCODE\tNAME\tPRICE\tSTOCK"
			if showImages {
				header += "\tIMAGE"
			}
			fmt.Fprintln(tw, header)
			for _, p := range products {
				if !p.IsActive {
					continue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s", p.ID, p.ProductCode, p.Name, formatMoney(p.Price), report.StockLevelText(p.Quantity))
				if showImages {
					fmt.Fprintf(tw, "\t%s", a.Media.Resolve(p.Image))
				}
				fmt.Fprintln(tw)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVar(&showImages, "images", false, "Show resolved image URLs")
	cmd.AddCommand(c.productAdminCommands()...)
	return cmd
}

func (c *cli) ordersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders [order-id]",
		Short: "List orders or show one order",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, _, err := c.authenticated(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				id, err := parseID(args[0], "order_id")
				if err != nil {
					return err
				}
				order, err := a.Client.GetOrder(cmd.Context(), id)
				if err != nil {
					return err
				}
				return c.printOrder(order)
			}

			orders, err := a.Client.ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			return c.printOrders(orders)
		}),
	}
	cmd.AddCommand(c.orderAdminCommands()...)
	return cmd
}

func (c *cli) printOrders(orders []model.Order) error {
	tw := newTable(c.stdout)
	fmt.Fprintln(tw, "ID\tNUMBER\tSTATUS\tTOTAL\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.OrderNumber, orderStatus(o), formatMoney(o.TotalAmount), o.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func orderStatus(o model.Order) string {
	if o.StatusDisplay != "" {
		return o.StatusDisplay
	}
	return o.Status
}

func (c *cli) printOrder(o model.Order) error {
	fmt.Fprintf(c.stdout, "Order #%d %s (%s)\n", o.ID, o.OrderNumber, orderStatus(o))
	if o.Notes != "" {
		fmt.Fprintf(c.stdout, "Notes: %s\n", o.Notes)
	}
	tw := newTable(c.stdout)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range o.Items {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", item.Product.Name, item.Quantity, formatMoney(item.Price), formatMoney(item.Subtotal))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Total: %s\n", formatMoney(o.TotalAmount))
	return nil
}

func (c *cli) feedbackCommand() *cobra.Command {
	var name, message string
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Send feedback to the hotel",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Client.SubmitFeedback(cmd.Context(), model.Feedback{FullName: name, Message: message}); err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, "Thank you for your feedback!")
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&message, "message", "", "Feedback message")
	cmd.AddCommand(c.feedbackAdminCommands()...)
	return cmd
}
