package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/rfqnorm/backend/internal/resolver"
)

func newProductsCmd(opts *rootOptions) *cobra.Command {
	var (
		topK   int
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "products [text]",
		Short: "텍스트에 언급된 상품 후보 조회",
		Long: `Rank the products a text mentions: a product code scores 100,
an alias match 80 plus a length bonus.

Example:
  go run ./cmd/rfq products 热卷 --top-k 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			n, err := newNormalizer(cfg, log)
			if err != nil {
				return err
			}
			candidates := resolver.FindProductCandidates(text, n.Tables(), topK)
			if candidates == nil {
				candidates = []resolver.ProductCandidate{}
			}
			return writeJSON(cmd.OutOrStdout(), candidates, pretty)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", resolver.DefaultTopK, "maximum number of candidates")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}
