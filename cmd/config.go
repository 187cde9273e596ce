package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/etherlab/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and ETHERLAB_*
environment overrides have been applied.

Examples:
  etherlab config
  ETHERLAB_DUMP_WIDTH=8 etherlab config -c etherlab.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig(cfg, cmd.OutOrStdout())
	},
}

func runConfig(conf *config.Config, out io.Writer) error {
	data, err := config.Render(conf)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
