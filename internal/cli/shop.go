package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/potionshop/internal/catalog"
	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// ShopStatus is the output of init: the pool and the catalog.
type ShopStatus struct {
	Database  string         `json:"database"`
	Inventory shop.Inventory `json:"inventory"`
	Potions   []shop.Potion  `json:"potions"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the shop database and show its state",
		Long: `Open the shop database, creating it with the genesis inventory
(100 gold, one unit of potion and liquid capacity) if it does not exist.
Running init on an existing shop only prints its state.

Examples:
  potionshop init --db ./shop.db
  potionshop init --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				return showStatus(ctx, s)
			})
		},
	}
}

func showStatus(ctx context.Context, s *session) error {
	inv, err := s.engine.Inventory(ctx)
	if err != nil {
		return s.out.Fail("init", err)
	}
	potions, err := s.engine.Potions(ctx)
	if err != nil {
		return s.out.Fail("init", err)
	}
	status := ShopStatus{Database: s.cfg.DBPath, Inventory: inv, Potions: potions}
	return s.out.Success(status, func(w io.Writer) {
		fmt.Fprintf(w, "Shop: %s\n", status.Database)
		writeInventory(w, inv)
		for _, p := range potions {
			fmt.Fprintf(w, "  %-12s %4d in stock  %4d gold\n", p.SKU, p.Quantity, p.Price)
		}
	})
}

func writeInventory(w io.Writer, inv shop.Inventory) {
	fmt.Fprintf(w, "Gold: %d\n", inv.Gold)
	fmt.Fprintf(w, "Liquids (ml, capacity %d each):", inv.LiquidCapacity())
	for _, lt := range shop.LiquidTypes {
		fmt.Fprintf(w, " %s=%d", lt, inv.Liquids.Get(lt))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Potion capacity: %d (%d units)\n", inv.PotionCapacity(), inv.PotionUnits)
}

// VisitResult lists the customers recorded for a visit.
type VisitResult struct {
	VisitID   int64           `json:"visit_id"`
	Customers []shop.Customer `json:"customers"`
}

// NewVisitCommand creates the visit command.
func NewVisitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visit <visit-id> <name:class:level>...",
		Short: "Record the customers of a visit",
		Long: `Record customers arriving with a visit. Each customer is written as
name:class:level; the printed customer ids are used by "cart create".

Example:
  potionshop visit 7 Borin:Fighter:3 Aria:Wizard:5`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisit(rootOpts, args, cmd)
		},
	}
}

func runVisit(opts *RootOptions, args []string, cmd *cobra.Command) error {
	visitID, err := parseID("visit id", args[0])
	if err != nil {
		return err
	}
	customers := make([]shop.Customer, 0, len(args)-1)
	for _, arg := range args[1:] {
		c, err := parseCustomer(arg)
		if err != nil {
			return err
		}
		customers = append(customers, c)
	}

	return withSession(cmd, opts, func(ctx context.Context, s *session) error {
		var recorded []shop.Customer
		err := s.store.Update(ctx, func(tx *store.Tx) error {
			var err error
			recorded, err = tx.RecordVisit(ctx, visitID, customers, time.Now())
			return err
		})
		if err != nil {
			return s.out.Fail("visit", err)
		}
		s.log.Info("visit recorded", "visit", visitID, "customers", len(recorded))

		res := VisitResult{VisitID: visitID, Customers: recorded}
		return s.out.Success(res, func(w io.Writer) {
			fmt.Fprintf(w, "Visit %d:\n", visitID)
			for _, c := range recorded {
				fmt.Fprintf(w, "  customer %d: %s (%s, level %d)\n", c.ID, c.Name, c.Class, c.Level)
			}
		})
	})
}

// parseCustomer reads name:class:level. Level defaults to 1.
func parseCustomer(arg string) (shop.Customer, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return shop.Customer{}, NewExitError(ExitCommandError, fmt.Sprintf("customer %q must be name:class[:level]", arg))
	}
	c := shop.Customer{Name: parts[0], Class: parts[1], Level: 1}
	if len(parts) == 3 {
		level, err := strconv.Atoi(parts[2])
		if err != nil || level < 0 {
			return shop.Customer{}, NewExitError(ExitCommandError, fmt.Sprintf("customer %q: level must be a non-negative integer", arg))
		}
		c.Level = level
	}
	return c, nil
}

// RecipeOptions holds flags for recipe define.
type RecipeOptions struct {
	*RootOptions
	Def shop.RecipeDef
}

// NewRecipeCommand creates the recipe command group.
func NewRecipeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Define potions",
	}
	cmd.AddCommand(newRecipeDefineCommand(rootOpts))
	cmd.AddCommand(newRecipeLoadCommand(rootOpts))
	return cmd
}

func newRecipeDefineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecipeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "define",
		Short: "Add one potion to the catalog",
		Long: `Add one potion to the catalog with zero stock. The recipe is given
in ml per batch; at least one liquid must be non-zero.

Example:
  potionshop recipe define --sku VIOLET --name "Violet Potion" --red 50 --blue 50 --price 65`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
				p, err := s.engine.DefineRecipe(ctx, opts.Def)
				if err != nil {
					return s.out.Fail("recipe define", err)
				}
				return s.out.Success(p, func(w io.Writer) {
					writePotion(w, p)
				})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Def.SKU, "sku", "", "potion SKU (required)")
	f.StringVar(&opts.Def.Name, "name", "", "display name (required)")
	f.StringVar(&opts.Def.Description, "description", "", "description")
	f.Int64Var(&opts.Def.Price, "price", 0, "price in gold")
	f.IntVar(&opts.Def.Recipe.Red, "red", 0, "red ml per batch")
	f.IntVar(&opts.Def.Recipe.Green, "green", 0, "green ml per batch")
	f.IntVar(&opts.Def.Recipe.Blue, "blue", 0, "blue ml per batch")
	f.IntVar(&opts.Def.Recipe.Dark, "dark", 0, "dark ml per batch")
	_ = cmd.MarkFlagRequired("sku")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newRecipeLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <recipes.yaml>",
		Short: "Define every recipe in a YAML file",
		Long: `Define every recipe in a YAML file, or none of them if any recipe is
invalid or its SKU already exists.

File format:
  recipes:
    - name: Red Potion
      sku: RED
      recipe: { red: 100 }
      price: 50`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := catalog.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load recipes", err)
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				potions, err := s.engine.DefineRecipes(ctx, defs)
				if err != nil {
					return s.out.Fail("recipe load", err)
				}
				return s.out.Success(potions, func(w io.Writer) {
					fmt.Fprintf(w, "Defined %d recipe(s)\n", len(potions))
					for _, p := range potions {
						writePotion(w, p)
					}
				})
			})
		},
	}
}

func writePotion(w io.Writer, p shop.Potion) {
	fmt.Fprintf(w, "%s %q: %d gold, %d in stock, recipe [%d,%d,%d,%d]\n",
		p.SKU, p.Name, p.Price, p.Quantity, p.Recipe.Red, p.Recipe.Green, p.Recipe.Blue, p.Recipe.Dark)
}
