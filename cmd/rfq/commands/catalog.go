package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wonny/rfqnorm/backend/internal/catalog"
	"github.com/wonny/rfqnorm/backend/pkg/redis"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "상품 카탈로그 관리",
		Long: `Inspect the product table or refresh its aliases from HZ.

Subcommands:
  list  - products and aliases the normalizer knows
  sync  - merge the HZ variety names into the table once and report

Example:
  go run ./cmd/rfq catalog list
  go run ./cmd/rfq catalog sync`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "상품 목록",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			tables, err := catalog.LoadBase(cfg.KeywordsPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tALIASES")
			for _, p := range tables.Products() {
				fmt.Fprintf(w, "%s\t%s\t%v\n", p.Code, p.Name, p.Aliases)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "HZ 품종명으로 별칭 동기화",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			client, rdb, err := connectHZ(cfg, log)
			if err != nil {
				return err
			}
			defer rdb.Close()

			base, err := catalog.LoadBase(cfg.KeywordsPath)
			if err != nil {
				return err
			}
			syncer := catalog.New(base, client, nil, log,
				catalog.WithCache(redis.NewCache(rdb, redis.DefaultPrefix), cfg.Catalog.CacheTTL))

			result, err := syncer.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result, true)
		},
	})

	return cmd
}
