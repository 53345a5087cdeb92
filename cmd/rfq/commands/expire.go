package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/normalizer"
)

func newExpireCmd(opts *rootOptions) *cobra.Command {
	var currentDate string

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "상대 만기일 계산",
		Long: `Compute an expiry date relative to the inquiry date.

Subcommands:
  months   - calendar months, fractional part as days of the month reached
  natural  - natural days
  trading  - trading days (weekends skipped)

Example:
  go run ./cmd/rfq expire months 1.5 --current-date 2026-02-12
  go run ./cmd/rfq expire trading 1 --current-date 2026-02-13`,
	}
	cmd.PersistentFlags().StringVar(&currentDate, "current-date", "", "inquiry date YYYY-MM-DD (default: today in RFQ_TIMEZONE)")

	for _, unit := range []string{normalizer.UnitMonths, normalizer.UnitNatural, normalizer.UnitTrading} {
		unit := unit
		cmd.AddCommand(&cobra.Command{
			Use:   unit + " <value>",
			Short: "expiry after <value> " + unit,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := opts.load(cmd)
				if err != nil {
					return err
				}
				value, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("value %q is not a number", args[0])
				}

				date := currentDate
				if date == "" {
					date = cfg.Today().Format(contracts.DateLayout)
				}
				expireDate, err := normalizer.ExpireDate(date, unit, value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), expireDate)
				return nil
			},
		})
	}
	return cmd
}
