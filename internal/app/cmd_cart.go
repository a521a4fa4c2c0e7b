package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitoshi/guestdesk/internal/model"
)

func (c *cli) cartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and modify the shopping cart",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.openCart(cmd.Context())
			if err != nil {
				return err
			}
			cart, err := a.Cart.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return c.printCart(cart)
		}),
	}

	var quantity int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0], "product_id")
			if err != nil {
				return err
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			return a.Cart.AddItem(cmd.Context(), productID, quantity)
		}),
	}
	add.Flags().IntVarP(&quantity, "quantity", "q", 1, "Quantity to add")

	update := &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Change the quantity of a cart item (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "item_id")
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return model.NewValidationError("quantity", "must be an integer")
			}
			a, err := c.openCart(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Cart.UpdateQuantity(cmd.Context(), itemID, qty); err != nil {
				return err
			}
			cart, _ := a.Cart.Snapshot()
			return c.printCart(cart)
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "item_id")
			if err != nil {
				return err
			}
			a, err := c.openCart(cmd.Context())
			if err != nil {
				return err
			}
			return a.Cart.RemoveItem(cmd.Context(), itemID)
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all items from the cart",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.openCart(cmd.Context())
			if err != nil {
				return err
			}
			return a.Cart.Clear(cmd.Context())
		}),
	}

	var notes string
	checkout := &cobra.Command{
		Use:   "checkout",
		Short: "Create an order from the cart",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.openCart(cmd.Context())
			if err != nil {
				return err
			}
			// 空判定はスナップショットで行うため先に取得する
			if _, err := a.Cart.Refresh(cmd.Context()); err != nil {
				return err
			}
			order, err := a.Cart.Checkout(cmd.Context(), notes)
			if err != nil {
				return err
			}
			return c.printOrder(order)
		}),
	}
	checkout.Flags().StringVar(&notes, "notes", "", "Notes for the order")

	cmd.AddCommand(add, update, remove, clearCmd, checkout)
	return cmd
}

// openCart はログイン済みであることを確認してカートを開く。
func (c *cli) openCart(ctx context.Context) (*App, error) {
	a, err := c.application(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Cart.Open(); err != nil {
		return nil, err
	}
	return a, nil
}

func (c *cli) printCart(cart model.Cart) error {
	if cart.IsEmpty() {
		fmt.Fprintln(c.stdout, "Your cart is empty")
		return nil
	}
	tw := newTable(c.stdout)
	fmt.Fprintln(tw, "ITEM\tPRODUCT\tQTY\tSUBTOTAL")
	for _, item := range cart.Items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", item.ID, item.Product.Name, item.Quantity, formatMoney(item.Subtotal))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Items: %d  Total: %s\n", cart.TotalItems, formatMoney(cart.TotalAmount))
	return nil
}
