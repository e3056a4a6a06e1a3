package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/potionshop/internal/shop"
)

// CartView is a cart with its lines.
type CartView struct {
	shop.Cart
	Items []shop.CartItem `json:"items"`
}

// NewCartCommand creates the cart command group.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage customer carts",
		Long: `Create carts, edit their lines and check them out.

Examples:
  potionshop cart create 1
  potionshop cart add 1 VIOLET 2
  potionshop cart checkout 1 --payment gold`,
	}
	cmd.AddCommand(newCartCreateCommand(rootOpts))
	cmd.AddCommand(newCartEditCommand(rootOpts, "add", "Add potions to a cart"))
	cmd.AddCommand(newCartEditCommand(rootOpts, "update", "Set the quantity of a cart line"))
	cmd.AddCommand(newCartRemoveCommand(rootOpts))
	cmd.AddCommand(newCartItemsCommand(rootOpts))
	cmd.AddCommand(newCartCheckoutCommand(rootOpts))
	return cmd
}

func newCartCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "create <customer-id>",
		Short:         "Open a cart for a customer",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := parseID("customer id", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				cart, err := s.engine.CreateCart(ctx, customer)
				if err != nil {
					return s.out.Fail("cart create", err)
				}
				return s.out.Success(cart, func(w io.Writer) {
					fmt.Fprintf(w, "Cart %d opened for customer %d\n", cart.ID, cart.CustomerID)
				})
			})
		},
	}
}

// newCartEditCommand builds "cart add" and "cart update"; they differ only
// in whether the quantity is added to or replaces the line.
func newCartEditCommand(rootOpts *RootOptions, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <cart-id> <sku> <quantity>",
		Short:         short,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cartID, err := parseID("cart id", args[0])
			if err != nil {
				return err
			}
			qty, err := parseCount("quantity", args[2])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				p, err := s.engine.PotionBySKU(ctx, args[1])
				if err != nil {
					return s.out.Fail("cart "+verb, err)
				}
				edit := s.engine.AddItem
				if verb == "update" {
					edit = s.engine.UpdateItem
				}
				cart, err := edit(ctx, cartID, p.ID, qty)
				if err != nil {
					return s.out.Fail("cart "+verb, err)
				}
				return s.out.Success(cart, func(w io.Writer) {
					writeCartTotals(w, cart)
				})
			})
		},
	}
}

func newCartRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <cart-id> <sku>",
		Short:         "Remove a line from a cart",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cartID, err := parseID("cart id", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				p, err := s.engine.PotionBySKU(ctx, args[1])
				if err != nil {
					return s.out.Fail("cart remove", err)
				}
				cart, err := s.engine.RemoveItem(ctx, cartID, p.ID)
				if err != nil {
					return s.out.Fail("cart remove", err)
				}
				return s.out.Success(cart, func(w io.Writer) {
					writeCartTotals(w, cart)
				})
			})
		},
	}
}

func newCartItemsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "items <cart-id>",
		Short:         "Show a cart and its lines",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cartID, err := parseID("cart id", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				cart, err := s.engine.Cart(ctx, cartID)
				if err != nil {
					return s.out.Fail("cart items", err)
				}
				items, err := s.engine.ListItems(ctx, cartID)
				if err != nil {
					return s.out.Fail("cart items", err)
				}
				view := CartView{Cart: cart, Items: items}
				return s.out.Success(view, func(w io.Writer) {
					writeCartTotals(w, cart)
					for _, it := range items {
						fmt.Fprintf(w, "  %-12s x%-4d @ %4d = %d\n", it.SKU, it.Quantity, it.Price, it.LineTotal())
					}
				})
			})
		},
	}
}

// CheckoutOptions holds flags for cart checkout.
type CheckoutOptions struct {
	*RootOptions
	Payment string
}

func newCartCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout <cart-id>",
		Short: "Sell a cart",
		Long: `Sell every line of a cart at its recorded price. Either the whole cart
sells or nothing changes; a short line reports every shortage.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cartID, err := parseID("cart id", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
				res, err := s.engine.Checkout(ctx, cartID, opts.Payment)
				if err != nil {
					return s.out.Fail("checkout", err)
				}
				return s.out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "Cart %d checked out: %d potion(s) for %d gold, txn %s\n",
						res.CartID, res.TotalPotionsBought, res.TotalGoldPaid, res.TxnID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Payment, "payment", "gold", "payment reference recorded on the cart")

	return cmd
}

func writeCartTotals(w io.Writer, cart shop.Cart) {
	fmt.Fprintf(w, "Cart %d [%s]: %d potion(s), %d gold\n",
		cart.ID, cart.Status, cart.TotalPotionsBought, cart.TotalGoldPaid)
}
