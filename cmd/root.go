package cmd

import (
	"fmt"
	"io"
	"os"

	"telegram-drive-relay/infrastructure/config"

	"github.com/spf13/cobra"
)

// OutputWriter allows capturing output in tests
type OutputWriter interface {
	io.Writer
}

var (
	cfgFile string
	cfg     *config.Config
	cfgErr  error
)

var rootCmd = &cobra.Command{
	Use:   "telegram-drive-relay",
	Short: "Relay files sent to a Telegram bot into cloud storage",
	Long: `telegram-drive-relay runs a Telegram bot that saves every file it receives
to Google Drive or an S3 compatible bucket:

  - Download documents, photos, videos, audio and voice messages
  - Report download and upload progress in the chat
  - Upload to the configured Drive folder or bucket prefix
  - Reply with a link to the stored file

Example:
  telegram-drive-relay setup
  telegram-drive-relay serve`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	// Config is optional for some commands (like setup and help).
	// Commands that need it call requireConfig.
	cfg, cfgErr = config.Resolve(cfgFile)
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

func requireConfig() (*config.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded (%v); run 'telegram-drive-relay setup' or set the environment variables", cfgErr)
	}
	return cfg, nil
}
