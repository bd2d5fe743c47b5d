package config

import (
	"fmt"
	"os"

	"github.com/marmos91/dittodav/pkg/config"
	"github.com/spf13/cobra"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate JSON schema for the configuration file",
	Long: `Generate the JSON schema of the configuration file, for editor
completion and CI validation.

Examples:
  dittodav config schema
  dittodav config schema --output config.schema.json`,
	RunE: runConfigSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write the schema to a file instead of stdout")
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	data, err := config.JSONSchema()
	if err != nil {
		return err
	}

	if schemaOutput == "" {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}

	if err := os.WriteFile(schemaOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
	return nil
}
