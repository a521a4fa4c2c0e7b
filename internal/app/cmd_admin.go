package app

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitoshi/guestdesk/internal/apiclient"
	"github.com/hitoshi/guestdesk/internal/model"
)

// staff はスタッフとしてログイン済みのAppを返す。
// 利用客の場合はバックエンドに問い合わせずに拒否する。
func (c *cli) staff(ctx context.Context, op string) (*App, error) {
	a, id, err := c.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !id.IsStaff() {
		return nil, model.NewForbiddenError(op)
	}
	return a, nil
}

// confirm は削除前の確認を行う。yesが指定されていれば確認しない。
func (c *cli) confirm(yes bool, question string) bool {
	if yes {
		return true
	}
	answer, err := c.prompt(question + " [y/N]: ")
	if err != nil {
		return false
	}
	return answer == "y" || answer == "yes"
}

// --- 商品 ---

// productFlags は商品の作成・更新で共通のフラグ。
type productFlags struct {
	name        string
	description string
	cost        string
	price       string
	quantity    int
	categories  []int64
	inactive    bool
	image       string
}

func (f *productFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Product name")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.cost, "cost", "", "Cost price")
	cmd.Flags().StringVar(&f.price, "price", "", "Selling price")
	cmd.Flags().IntVar(&f.quantity, "quantity", 0, "Stock quantity")
	cmd.Flags().Int64SliceVar(&f.categories, "category", nil, "Category ID (repeatable)")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "Hide the product from customers")
	cmd.Flags().StringVar(&f.image, "image", "", "Path of the product image")
}

// apply は指定されたフラグだけを入力に反映する。
func (f *productFlags) apply(cmd *cobra.Command, in *apiclient.ProductInput) {
	changed := cmd.Flags().Changed
	if changed("name") {
		in.Name = f.name
	}
	if changed("description") {
		in.Description = f.description
	}
	if changed("cost") {
		in.Cost = f.cost
	}
	if changed("price") {
		in.Price = f.price
	}
	if changed("quantity") {
		in.Quantity = f.quantity
	}
	if changed("category") {
		in.CategoryIDs = f.categories
	}
	if changed("inactive") {
		in.IsActive = !f.inactive
	}
}

// save は画像ファイルを開いてからfnで商品を保存する。
func (f *productFlags) save(in apiclient.ProductInput, fn func(apiclient.ProductInput) (model.Product, error)) (model.Product, error) {
	if f.image == "" {
		return fn(in)
	}
	file, err := os.Open(f.image)
	if err != nil {
		return model.Product{}, model.NewValidationError("image", err.Error())
	}
	defer file.Close()
	in.Image = &apiclient.ImageUpload{FileName: f.image, Content: file}
	return fn(in)
}

func (c *cli) printProduct(a *App, p model.Product) {
	fmt.Fprintf(c.stdout, "Product #%d %s (%s)\n", p.ID, p.Name, p.ProductCode)
	if p.Description != "" {
		fmt.Fprintf(c.stdout, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(c.stdout, "Price: %s\nCost: %s\nStock: %d\nActive: %t\n", formatMoney(p.Price), formatMoney(p.Cost), p.Quantity, p.IsActive)
	if p.Image != "" {
		fmt.Fprintf(c.stdout, "Image: %s\n", a.Media.Resolve(p.Image))
	}
}

func (c *cli) productAdminCommands() []*cobra.Command {
	show := &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product_id")
			if err != nil {
				return err
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.Client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			c.printProduct(a, p)
			return nil
		}),
	}

	var createFlags productFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a product (staff only)",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.staff(cmd.Context(), "products create")
			if err != nil {
				return err
			}
			in := apiclient.ProductInput{IsActive: true}
			createFlags.apply(cmd, &in)
			p, err := createFlags.save(in, func(in apiclient.ProductInput) (model.Product, error) {
				return a.Client.CreateProduct(cmd.Context(), in)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Created product #%d %s (%s)\n", p.ID, p.Name, p.ProductCode)
			return nil
		}),
	}
	createFlags.register(create)

	var updateFlags productFlags
	update := &cobra.Command{
		Use:   "update <product-id>",
		Short: "Update a product (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product_id")
			if err != nil {
				return err
			}
			a, err := c.staff(cmd.Context(), "products update")
			if err != nil {
				return err
			}
			current, err := a.Client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			in := apiclient.ProductInputFrom(current)
			updateFlags.apply(cmd, &in)
			p, err := updateFlags.save(in, func(in apiclient.ProductInput) (model.Product, error) {
				return a.Client.UpdateProduct(cmd.Context(), id, in)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Updated product #%d %s\n", p.ID, p.Name)
			return nil
		}),
	}
	updateFlags.register(update)

	replenish := &cobra.Command{
		Use:   "replenish <product-id> <quantity>",
		Short: "Add stock to a product (staff only)",
		Args:  cobra.ExactArgs(2),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product_id")
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return model.NewValidationError("replenish_quantity", "must be an integer")
			}
			a, err := c.staff(cmd.Context(), "products replenish")
			if err != nil {
				return err
			}
			p, err := a.Client.ReplenishProduct(cmd.Context(), id, qty)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Product #%d stock: %d\n", p.ID, p.Quantity)
			return nil
		}),
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Delete a product (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product_id")
			if err != nil {
				return err
			}
			a, err := c.staff(cmd.Context(), "products delete")
			if err != nil {
				return err
			}
			if !c.confirm(yes, fmt.Sprintf("Delete product #%d?", id)) {
				fmt.Fprintln(c.stdout, "Cancelled")
				return nil
			}
			if err := a.Client.DeleteProduct(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Deleted product #%d\n", id)
			return nil
		}),
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return []*cobra.Command{show, create, update, replenish, del}
}

// --- カテゴリ ---

func (c *cli) categoriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			categories, err := a.Client.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(c.stdout)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, cat := range categories {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", cat.ID, cat.Name, cat.Description)
			}
			return tw.Flush()
		}),
	}

	show := &cobra.Command{
		Use:   "show <category-id>",
		Short: "Show one category",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category_id")
			if err != nil {
				return err
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := a.Client.GetCategory(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Category #%d %s\n", cat.ID, cat.Name)
			if cat.Description != "" {
				fmt.Fprintf(c.stdout, "Description: %s\n", cat.Description)
			}
			return nil
		}),
	}

	var createIn apiclient.CategoryInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a category (staff only)",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.staff(cmd.Context(), "categories create")
			if err != nil {
				return err
			}
			cat, err := a.Client.CreateCategory(cmd.Context(), createIn)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Created category #%d %s\n", cat.ID, cat.Name)
			return nil
		}),
	}
	create.Flags().StringVar(&createIn.Name, "name", "", "Category name")
	create.Flags().StringVar(&createIn.Description, "description", "", "Description")

	var updateIn apiclient.CategoryInput
	update := &cobra.Command{
		Use:   "update <category-id>",
		Short: "Update a category (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category_id")
			if err != nil {
				return err
			}
			a, err := c.staff(cmd.Context(), "categories update")
			if err != nil {
				return err
			}
			current, err := a.Client.GetCategory(cmd.Context(), id)
			if err != nil {
				return err
			}
			in := apiclient.CategoryInput{Name: current.Name, Description: current.Description}
			if cmd.Flags().Changed("name") {
				in.Name = updateIn.Name
			}
			if cmd.Flags().Changed("description") {
				in.Description = updateIn.Description
			}
			cat, err := a.Client.UpdateCategory(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Updated category #%d %s\n", cat.ID, cat.Name)
			return nil
		}),
	}
	update.Flags().StringVar(&updateIn.Name, "name", "", "Category name")
	update.Flags().StringVar(&updateIn.Description, "description", "", "Description")

	var yes bool
	del := &cobra.Command{
		Use:   "delete <category-id>",
		Short: "Delete a category (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category_id")
			if err != nil {
				return err
			}
			a, err := c.staff(cmd.Context(), "categories delete")
			if err != nil {
				return err
			}
			if !c.confirm(yes, fmt.Sprintf("Delete category #%d?", id)) {
				fmt.Fprintln(c.stdout, "Cancelled")
				return nil
			}
			if err := a.Client.DeleteCategory(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Deleted category #%d\n", id)
			return nil
		}),
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	cmd.AddCommand(show, create, update, del)
	return cmd
}

// --- 注文 ---

func (c *cli) orderAdminCommands() []*cobra.Command {
	all := &cobra.Command{
		Use:   "all",
		Short: "List orders of every customer (staff only)",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.staff(cmd.Context(), "orders all")
			if err != nil {
				return err
			}
			orders, err := a.Client.ListAllOrders(cmd.Context())
			if err != nil {
				return err
			}
			return c.printOrders(orders)
		}),
	}

	status := &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Change the status of an order (staff only)",
		Long: `Change the status of an order.

The status is a code (P, C, PR, S, D, CA, R) or its label
(Pending, Confirmed, Processing, Shipped, Delivered, Cancelled, Refunded).`,
		Args: cobra.ExactArgs(2),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order_id")
			if err != nil {
				return err
			}
			if _, err := apiclient.ParseOrderStatus(args[1]); err != nil {
				return err
			}
			a, err := c.staff(cmd.Context(), "orders status")
			if err != nil {
				return err
			}
			order, err := a.Client.UpdateOrderStatus(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Order #%d %s is now %s\n", order.ID, order.OrderNumber, orderStatus(order))
			return nil
		}),
	}

	return []*cobra.Command{all, status}
}

// --- フィードバック ---

func (c *cli) feedbackAdminCommands() []*cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List received feedback (staff only)",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.staff(cmd.Context(), "feedback list")
			if err != nil {
				return err
			}
			items, err := a.Client.ListFeedback(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(c.stdout)
			fmt.Fprintln(tw, "ID\tNAME\tRECEIVED\tMESSAGE")
			for _, fb := range items {
				received := ""
				if !fb.CreatedAt.IsZero() {
					received = fb.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", fb.ID, fb.FullName, received, fb.Message)
			}
			return tw.Flush()
		}),
	}

	var name, message string
	update := &cobra.Command{
		Use:   "update <feedback-id>",
		Short: "Replace the name and message of feedback (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "feedback_id")
			if err != nil {
				return err
			}
			a, err := c.staff(cmd.Context(), "feedback update")
			if err != nil {
				return err
			}
			fb, err := a.Client.UpdateFeedback(cmd.Context(), id, model.Feedback{FullName: name, Message: message})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Updated feedback #%d\n", fb.ID)
			return nil
		}),
	}
	update.Flags().StringVar(&name, "name", "", "Full name")
	update.Flags().StringVar(&message, "message", "", "Feedback message")

	var yes bool
	del := &cobra.Command{
		Use:   "delete <feedback-id>",
		Short: "Delete feedback (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "feedback_id")
			if err != nil {
				return err
			}
			a, err := c.staff(cmd.Context(), "feedback delete")
			if err != nil {
				return err
			}
			if !c.confirm(yes, fmt.Sprintf("Delete feedback #%d?", id)) {
				fmt.Fprintln(c.stdout, "Cancelled")
				return nil
			}
			if err := a.Client.DeleteFeedback(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Deleted feedback #%d\n", id)
			return nil
		}),
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return []*cobra.Command{list, update, del}
}
