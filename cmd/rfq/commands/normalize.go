package commands

import (
	"github.com/spf13/cobra"
)

func newNormalizeCmd(opts *rootOptions) *cobra.Command {
	var (
		currentDate string
		pretty      bool
	)

	cmd := &cobra.Command{
		Use:   "normalize [text]",
		Short: "문의 텍스트를 견적 요청으로 변환",
		Long: `Split an inquiry into legs and print one InquiryQuote per leg as a JSON array.
The text is read from stdin when no argument is given.

Example:
  go run ./cmd/rfq normalize "HC2610 看涨 平值 客户买；RB2610 看跌 虚50 客户卖" --current-date 2026-02-12
  echo "热卷10 看涨 3500" | go run ./cmd/rfq normalize`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			ctx, err := inquiryContext(cfg, currentDate)
			if err != nil {
				return err
			}

			n, err := newNormalizer(cfg, log)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), n.Normalize(text, ctx), pretty)
		},
	}

	cmd.Flags().StringVar(&currentDate, "current-date", "", "inquiry date YYYY-MM-DD (default: today in RFQ_TIMEZONE)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}
