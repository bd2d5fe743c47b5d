package commands

import (
	"fmt"

	"github.com/marmos91/dittodav/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample dittodav configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittodav/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dittodav init

  # Initialize with custom path
  dittodav init --config /etc/dittodav/config.yaml

  # Force overwrite existing config
  dittodav init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the folders section to point at the directories to share")
	fmt.Fprintln(out, "  2. Start the server with: dittodav start")
	fmt.Fprintf(out, "  3. Or specify custom config: dittodav start --config %s\n", configPath)
	return nil
}
