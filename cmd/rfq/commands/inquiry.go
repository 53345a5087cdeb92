package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/rfqnorm/backend/internal/normalizer"
)

// hintFlags holds the raw flag values; only flags the user set become hints
type hintFlags struct {
	contractCode, product, expireDate string
	month, year, callPut, buySell     int
	naturalDays, tradingDays          int
	strike, offset, underlying        float64
	quantity, months                  float64
}

func (f *hintFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.contractCode, "contract-code", "", "contract code, e.g. HC2610, hc10, OI605")
	fl.StringVar(&f.product, "product", "", "product code or alias (with --month)")
	fl.IntVar(&f.month, "month", 0, "contract month 1-12 (with --product)")
	fl.IntVar(&f.year, "year", 0, "contract year, e.g. 2026 (with --product)")
	fl.IntVar(&f.callPut, "call-put", 0, "1 = call, 2 = put")
	fl.IntVar(&f.buySell, "buy-sell", 0, "1 = customer buys, -1 = customer sells")
	fl.Float64Var(&f.strike, "strike", 0, "absolute strike")
	fl.Float64Var(&f.offset, "strike-offset", 0, "strike offset from the underlying")
	fl.Float64Var(&f.underlying, "underlying-price", 0, "underlying price")
	fl.Float64Var(&f.quantity, "quantity", 0, "quantity in lots")
	fl.StringVar(&f.expireDate, "expire-date", "", "absolute expiry YYYY-MM-DD")
	fl.Float64Var(&f.months, "expire-in-months", 0, "expiry in (fractional) months")
	fl.IntVar(&f.naturalDays, "expire-in-natural-days", 0, "expiry in natural days")
	fl.IntVar(&f.tradingDays, "expire-in-trading-days", 0, "expiry in trading days")
}

func (f *hintFlags) hints(cmd *cobra.Command) normalizer.Hints {
	set := cmd.Flags().Changed
	var h normalizer.Hints

	if set("contract-code") {
		h.ContractCode = &f.contractCode
	}
	if set("product") {
		h.Product = &f.product
	}
	if set("month") {
		h.Month = &f.month
	}
	if set("year") {
		h.Year = &f.year
	}
	if set("call-put") {
		h.CallPut = &f.callPut
	}
	if set("buy-sell") {
		h.BuySell = &f.buySell
	}
	if set("strike") {
		h.Strike = &f.strike
	}
	if set("strike-offset") {
		h.StrikeOffset = &f.offset
	}
	if set("underlying-price") {
		h.UnderlyingPrice = &f.underlying
	}
	if set("quantity") {
		h.Quantity = &f.quantity
	}
	if set("expire-date") {
		h.ExpireDate = &f.expireDate
	}
	if set("expire-in-months") {
		h.ExpireInMonths = &f.months
	}
	if set("expire-in-natural-days") {
		h.ExpireInNaturalDays = &f.naturalDays
	}
	if set("expire-in-trading-days") {
		h.ExpireInTradingDays = &f.tradingDays
	}
	return h
}

func newInquiryCmd(opts *rootOptions) *cobra.Command {
	var (
		currentDate string
		pretty      bool
		flags       hintFlags
	)

	cmd := &cobra.Command{
		Use:   "inquiry [text]",
		Short: "단일 레그 문의 + 명시적 필드 힌트",
		Long: `Normalize one leg, letting explicit field hints override what the text says.
An absolute --expire-date beats the relative expiry flags; --strike clears the offset.

Example:
  go run ./cmd/rfq inquiry "看涨 平值" --contract-code hc10 --buy-sell 1 --expire-in-months 1.5 --current-date 2026-02-12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			text := ""
			if len(args) > 0 {
				if text, err = readText(cmd, args); err != nil {
					return err
				}
			}
			ctx, err := inquiryContext(cfg, currentDate)
			if err != nil {
				return err
			}

			n, err := newNormalizer(cfg, log)
			if err != nil {
				return err
			}
			quote, err := n.NormalizeWithHints(text, ctx, flags.hints(cmd))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), quote, pretty)
		},
	}

	cmd.Flags().StringVar(&currentDate, "current-date", "", "inquiry date YYYY-MM-DD (default: today in RFQ_TIMEZONE)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	flags.register(cmd)
	return cmd
}
