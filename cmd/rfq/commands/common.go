package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/rfqnorm/backend/internal/catalog"
	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/normalizer"
	"github.com/wonny/rfqnorm/backend/pkg/config"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
)

// load reads the config and builds a stderr logger so stdout stays machine readable
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	return cfg, logger.NewWithWriter(cmd.ErrOrStderr(), level), nil
}

// newNormalizer uses RFQ_KEYWORDS_FILE when set
func newNormalizer(cfg *config.Config, log *logger.Logger, opts ...normalizer.Option) (*normalizer.Normalizer, error) {
	base, err := catalog.LoadBase(cfg.KeywordsPath)
	if err != nil {
		return nil, err
	}
	return normalizer.New(base, log, opts...), nil
}

// inquiryContext parses --current-date or uses today in RFQ_TIMEZONE
func inquiryContext(cfg *config.Config, currentDate string) (contracts.InquiryContext, error) {
	if strings.TrimSpace(currentDate) == "" {
		return contracts.NewInquiryContext(cfg.Today()), nil
	}
	ctx, err := contracts.ParseInquiryContext(currentDate)
	if err != nil {
		return contracts.InquiryContext{}, fmt.Errorf("--current-date: %w", err)
	}
	return ctx, nil
}

// readText joins the arguments, or reads stdin when there are none
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
