package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/potionshop/internal/engine"
	"github.com/roach88/potionshop/internal/store"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List potions for sale",
		Long: `List up to six potions in stock, most plentiful first. The listing is
cached according to SHOP_CATALOG_CACHE and SHOP_CATALOG_TTL.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				items, err := s.engine.Catalog(ctx)
				if err != nil {
					return s.out.Fail("catalog", err)
				}
				return s.out.Success(items, func(w io.Writer) {
					if len(items) == 0 {
						fmt.Fprintln(w, "Nothing for sale.")
						return
					}
					for _, it := range items {
						fmt.Fprintf(w, "%-12s %-24s %4d @ %4d gold  %v\n", it.SKU, it.Name, it.Quantity, it.Price, it.PotionType)
					}
				})
			})
		},
	}
}

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Query engine.SearchQuery
	Sort  string
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search sold line items",
		Long: `Page through the line items of checked-out carts, five per page.
Customer and SKU filters are case-insensitive substring matches.

Examples:
  potionshop search --customer aria
  potionshop search --sku violet --sort line_item_total --order asc
  potionshop search --cursor 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Query.Sort = store.SortColumn(opts.Sort)
			return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
				page, err := s.engine.SearchLineItems(ctx, opts.Query)
				if err != nil {
					return s.out.Fail("search", err)
				}
				return s.out.Success(page, func(w io.Writer) {
					for _, it := range page.Results {
						fmt.Fprintf(w, "%5d  %-12s %-16s x%-3d %5d gold  %s\n",
							it.LineItemID, it.ItemSKU, it.CustomerName, it.Quantity, it.LineItemTotal,
							it.Timestamp.Format("2006-01-02 15:04:05"))
					}
					if len(page.Results) == 0 {
						fmt.Fprintln(w, "No line items.")
					}
					if page.Previous != "" {
						fmt.Fprintf(w, "previous: --cursor %s\n", page.Previous)
					}
					if page.Next != "" {
						fmt.Fprintf(w, "next: --cursor %s\n", page.Next)
					}
				})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Query.CustomerName, "customer", "", "customer name filter")
	f.StringVar(&opts.Query.SKU, "sku", "", "potion SKU filter")
	f.StringVar(&opts.Sort, "sort", string(store.SortTimestamp), "sort column (customer_name|item_sku|line_item_total|timestamp)")
	f.StringVar(&opts.Query.Order, "order", "desc", "sort order (asc|desc)")
	f.StringVar(&opts.Query.Cursor, "cursor", "", "page cursor from a previous search")

	return cmd
}
