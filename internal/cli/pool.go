package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/potionshop/internal/shop"
)

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <red|green|blue|dark> <ml>",
		Short: "Add liquid to the pool",
		Long: `Add liquid to the pool. A deposit larger than the remaining capacity
is clamped; the overflow is reported and not stored.

Example:
  potionshop deposit red 500`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseCount("amount", args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.engine.DepositLiquid(ctx, shop.LiquidType(args[0]), amount)
				if err != nil {
					return s.out.Fail("deposit", err)
				}
				return s.out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "Deposited %d ml %s (pool now %d ml)\n", res.Accepted, res.Liquid, res.Volume)
					if res.Overflow > 0 {
						fmt.Fprintf(w, "Overflow: %d ml did not fit\n", res.Overflow)
					}
				})
			})
		},
	}
}

// NewMixCommand creates the mix command.
func NewMixCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mix <sku> <batches>",
		Short: "Brew potions from the pool",
		Long: `Brew batches of a potion. Each batch consumes the recipe's liquids and
adds one potion to stock. Nothing changes if potion capacity or any
liquid falls short.

Example:
  potionshop mix VIOLET 3`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			batches, err := parseCount("batches", args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				p, err := s.engine.PotionBySKU(ctx, args[0])
				if err != nil {
					return s.out.Fail("mix", err)
				}
				res, err := s.engine.MixPotion(ctx, p.ID, batches)
				if err != nil {
					return s.out.Fail("mix", err)
				}
				return s.out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "Mixed %d %s (%d in stock), txn %s\n", res.Batches, res.SKU, res.Quantity, res.TxnID)
					for _, lt := range shop.LiquidTypes {
						if v := res.Consumed.Get(lt); v > 0 {
							fmt.Fprintf(w, "  used %d ml %s\n", v, lt)
						}
					}
				})
			})
		},
	}
}

// NewUpgradeCommand creates the upgrade command.
func NewUpgradeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <potion|liquid> <units>",
		Short: "Buy storage capacity with gold",
		Long: `Buy potion or liquid capacity units. Prices come from the pricing
policy (SHOP_PRICING_FILE); the default is 1000 gold per unit.

Example:
  potionshop upgrade liquid 1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := parseCount("units", args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.engine.UpgradeCapacity(ctx, shop.CapacityKind(args[0]), units)
				if err != nil {
					return s.out.Fail("upgrade", err)
				}
				return s.out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "Bought %d %s unit(s) for %d gold: %d units, %d gold left\n",
						res.Units, res.Kind, res.Cost, res.Total, res.Gold)
				})
			})
		},
	}
}
