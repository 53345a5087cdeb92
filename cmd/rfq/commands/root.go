package commands

import (
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	verbose bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "rfq",
		Short: "RFQ normalizer - 자유 텍스트 옵션 문의를 구조화된 견적 요청으로 변환",
		Long: `RFQ Normalizer CLI

Free-text OTC option inquiries in, ordered InquiryQuote records out.
Ambiguous fields become null; nothing is guessed.

Usage:
  go run ./cmd/rfq [command]

Examples:
  go run ./cmd/rfq normalize "HC2610 看涨 行权价3500 客户买 10手 1个月"
  go run ./cmd/rfq expire trading 5 --current-date 2026-02-13
  go run ./cmd/rfq products 热卷 --top-k 3
  go run ./cmd/rfq varieties --output varieties.json --pretty
  go run ./cmd/rfq api`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logs on stderr")

	rootCmd.AddCommand(
		newNormalizeCmd(opts),
		newInquiryCmd(opts),
		newExpireCmd(opts),
		newProductsCmd(opts),
		newVarietiesCmd(opts),
		newCatalogCmd(opts),
		newAPICmd(opts),
	)
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
