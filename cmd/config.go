package cmd

import (
	"fmt"
	"os"

	"telegram-drive-relay/infrastructure/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultOutput is the default output writer for config commands
var DefaultOutput OutputWriter = os.Stdout

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
	Long: `Show or check the effective configuration: config.yaml overlaid with
environment variables and .env.

Examples:
  telegram-drive-relay config show
  telegram-drive-relay config validate`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets hidden",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigShowWithDependencies(cfg, DefaultOutput)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configuration is complete",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigValidateWithDependencies(cfgFile, DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

// RunConfigShowWithDependencies writes cfg as YAML with secrets replaced
func RunConfigShowWithDependencies(cfg *config.Config, out OutputWriter) error {
	shown := *cfg
	shown.Telegram.Token = redact(shown.Telegram.Token)
	shown.Google.CredentialsJSON = redact(shown.Google.CredentialsJSON)
	shown.S3.SecretKey = redact(shown.S3.SecretKey)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&shown); err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return enc.Close()
}

// RunConfigValidateWithDependencies resolves the configuration at path and
// reports whether it is usable
func RunConfigValidateWithDependencies(path string, out OutputWriter) error {
	if path == "" {
		path = config.DefaultPath
	}
	if _, err := config.Resolve(path); err != nil {
		return err
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
