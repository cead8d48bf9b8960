package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitekit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or check the sitekit configuration",
	Long: `Show or check the configuration after the config file, .env file,
SITEKIT_* environment variables and defaults have been applied.

Examples:
  sitekit config show                  # Show resolved configuration as YAML
  sitekit config show --format json
  sitekit config validate --strict     # Fail on warnings too`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Show the resolved configuration. Secrets such as the conversion API token
are never printed.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration and report what would go wrong in production:
no destination configured, a conversion API enabled without credentials or
with an expired token, or no pixel account.`,
	RunE: runConfigValidate,
}

var (
	configFormat   string
	configStrict   bool
	validateOutput *OutputFlags
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", FormatYAML, "Output format (yaml, json)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
	validateOutput = AddOutputFlags(configValidateCmd, FormatTable)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Round trip through YAML so json output honours the yaml:"-" redactions.
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	switch configFormat {
	case FormatYAML:
		_, err = cmd.OutOrStdout().Write(data)
		return err
	case FormatJSON:
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(generic)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	result := config.Check(cfg, time.Now())
	if err := validateOutput.Write(cmd.OutOrStdout(), result, func(w io.Writer) error {
		_, err := io.WriteString(w, result.String())
		return err
	}); err != nil {
		return err
	}

	if !result.Valid() {
		return errors.New("configuration is invalid")
	}
	if configStrict && result.HasWarnings() {
		return errors.New("configuration has warnings")
	}
	return nil
}
