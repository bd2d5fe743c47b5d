package config

import (
	"fmt"

	"github.com/marmos91/dittodav/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Load the configuration file, apply defaults and environment overrides,
and report the first problem found.

Examples:
  dittodav config validate
  dittodav config validate --config /etc/dittodav/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid")
	fmt.Fprintf(out, "  Folders:        %d\n", len(cfg.Folders))
	fmt.Fprintf(out, "  Property store: %s\n", cfg.Properties.Type)
	fmt.Fprintf(out, "  WebDAV:         port %d, prefix %s\n", cfg.Adapters.WebDAV.Port, cfg.Adapters.WebDAV.Prefix)
	return nil
}
