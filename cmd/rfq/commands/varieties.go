package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newVarietiesCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "varieties",
		Short: "HZ 진행중 계약의 품종 코드 -> 이름 맵 출력",
		Long: `Log in to the HZ platform and print {varietyCode: varietyName}
for the in-flight OTC contracts.

Requires HZ_ADDRESS, HZ_USERNAME and HZ_PASSWORD.

Example:
  go run ./cmd/rfq varieties --pretty
  go run ./cmd/rfq varieties --output varieties.json`,
		Args: cobra.NoArgs,
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

			varieties, err := client.VarietyMap(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch variety map: %w", err)
			}

			var buf bytes.Buffer
			if err := writeJSON(&buf, varieties, pretty); err != nil {
				return err
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ %d varieties written to %s\n", len(varieties), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JSON to a file instead of stdout")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}
