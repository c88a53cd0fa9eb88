package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"telegram-drive-relay/infrastructure/config"
	"telegram-drive-relay/infrastructure/drive"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Password(message string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
	Select(message string, options []string, defaultValue string) (string, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Password(message string) (string, error) {
	result := ""
	if err := survey.AskOne(&survey.Password{Message: message}, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func (p *SurveyPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Select{
		Message: message,
		Options: options,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

// Authorizer runs the Google OAuth browser flow and stores the token
type Authorizer func(ctx context.Context, g config.GoogleConfig, out io.Writer) error

// DefaultAuthorizer authorizes against Google with the drive package
var DefaultAuthorizer Authorizer = func(ctx context.Context, g config.GoogleConfig, out io.Writer) error {
	_, err := drive.NewClientWithOAuth(ctx, drive.OAuthConfig{
		CredentialsFile: g.CredentialsFile,
		TokenFile:       g.TokenFile,
		Out:             out,
	}, true)
	return err
}

var errPromptCancelled = errors.New("prompt cancelled")

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting up the Telegram bot token, the
destination (Google Drive or S3) and how uploaded files are organized.
With Google OAuth it also opens the browser to authorize Drive access.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	return RunSetupWithPrompter(cmd.Context(), DefaultPrompter, DefaultAuthorizer, cfgFile, os.Stdout)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(ctx context.Context, prompter Prompter, authorize Authorizer, configPath string, out OutputWriter) error {
	if configPath == "" {
		configPath = config.DefaultPath
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return errPromptCancelled
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to telegram-drive-relay setup!")
	fmt.Fprintln(out)

	cfg := config.Defaults()

	if err := promptTelegram(prompter, &cfg); err != nil {
		return err
	}

	backend, err := prompter.Select("Where should files be stored?", []string{config.BackendDrive, config.BackendS3}, config.BackendDrive)
	if err != nil {
		return errPromptCancelled
	}
	cfg.Destination.Backend = backend

	switch backend {
	case config.BackendS3:
		err = promptS3(prompter, &cfg)
	default:
		err = promptGoogle(prompter, &cfg)
	}
	if err != nil {
		return err
	}

	if err := promptTransfer(prompter, &cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Save configuration
	if err := config.Save(&cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)

	if cfg.Destination.Backend == config.BackendDrive && cfg.Google.AuthMode == config.AuthOAuth {
		now, err := prompter.Confirm("Authorize Google Drive access now?", true)
		if err != nil {
			return errPromptCancelled
		}
		if now {
			if err := authorize(ctx, cfg.Google, out); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}
		} else {
			fmt.Fprintln(out, "Run setup again or 'serve' after placing a token file to finish authorization.")
		}
	}
	return nil
}

func promptTelegram(prompter Prompter, cfg *config.Config) error {
	token, err := prompter.Password("Telegram bot token (from @BotFather)?")
	if err != nil {
		return errPromptCancelled
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("bot token is required")
	}
	cfg.Telegram.Token = token

	server, err := prompter.Input("Self-hosted Bot API server URL (empty for api.telegram.org)?", "")
	if err != nil {
		return errPromptCancelled
	}
	if server = strings.TrimRight(strings.TrimSpace(server), "/"); server != "" {
		cfg.Telegram.APIEndpoint = server + "/bot%s/%s"
		cfg.Telegram.FileEndpoint = server + "/file/bot%s/%s"
	}
	return nil
}

func promptGoogle(prompter Prompter, cfg *config.Config) error {
	mode, err := prompter.Select("How should the bot sign in to Google?", []string{config.AuthServiceAccount, config.AuthOAuth}, config.AuthServiceAccount)
	if err != nil {
		return errPromptCancelled
	}
	cfg.Google.AuthMode = mode

	credentials, err := prompter.Input("Path to Google credentials file?", "credentials.json")
	if err != nil {
		return errPromptCancelled
	}
	if credentials == "" {
		credentials = "credentials.json"
	}
	cfg.Google.CredentialsFile = credentials

	if mode == config.AuthOAuth {
		token, err := prompter.Input("Where should the OAuth token be stored?", "token.json")
		if err != nil {
			return errPromptCancelled
		}
		if token == "" {
			token = "token.json"
		}
		cfg.Google.TokenFile = token
	}

	folder, err := prompter.Input("Google Drive folder ID for uploads?", "")
	if err != nil {
		return errPromptCancelled
	}
	if folder == "" {
		return fmt.Errorf("folder ID is required")
	}
	cfg.Google.FolderID = folder

	label, err := prompter.Input("Folder name shown to users?", "TelegramUploads")
	if err != nil {
		return errPromptCancelled
	}
	cfg.Destination.FolderLabel = label
	return nil
}

func promptS3(prompter Prompter, cfg *config.Config) error {
	endpoint, err := prompter.Input("S3 endpoint URL (empty for AWS)?", "")
	if err != nil {
		return errPromptCancelled
	}
	cfg.S3.Endpoint = strings.TrimSpace(endpoint)

	bucket, err := prompter.Input("Bucket name?", "")
	if err != nil {
		return errPromptCancelled
	}
	if bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	cfg.S3.Bucket = bucket

	region, err := prompter.Input("Region?", cfg.S3.Region)
	if err != nil {
		return errPromptCancelled
	}
	if region != "" {
		cfg.S3.Region = region
	}

	accessKey, err := prompter.Input("Access key ID (empty to use the AWS credential chain)?", "")
	if err != nil {
		return errPromptCancelled
	}
	cfg.S3.AccessKey = accessKey
	if accessKey != "" {
		secret, err := prompter.Password("Secret access key?")
		if err != nil {
			return errPromptCancelled
		}
		cfg.S3.SecretKey = secret
	}

	prefix, err := prompter.Input("Key prefix for uploads (empty for the bucket root)?", "")
	if err != nil {
		return errPromptCancelled
	}
	cfg.S3.Prefix = strings.Trim(prefix, "/")
	cfg.Destination.FolderLabel = cfg.S3.Bucket
	if cfg.S3.Prefix != "" {
		cfg.Destination.FolderLabel += "/" + cfg.S3.Prefix
	}

	pathStyle, err := prompter.Confirm("Use path-style addressing (needed by MinIO)?", cfg.S3.Endpoint != "")
	if err != nil {
		return errPromptCancelled
	}
	cfg.S3.UsePathStyle = pathStyle
	return nil
}

func promptTransfer(prompter Prompter, cfg *config.Config) error {
	placement, err := prompter.Select("How should uploads be organized?", []string{"flat", "per_item_folder"}, cfg.Destination.Placement)
	if err != nil {
		return errPromptCancelled
	}
	cfg.Destination.Placement = placement

	if placement == "per_item_folder" {
		reuse, err := prompter.Confirm("Reuse an existing folder with the same name?", false)
		if err != nil {
			return errPromptCancelled
		}
		cfg.Destination.ReuseExistingFolder = reuse
	}

	staging, err := prompter.Input("Directory for files being transferred?", cfg.Transfer.StagingDir)
	if err != nil {
		return errPromptCancelled
	}
	if staging != "" {
		cfg.Transfer.StagingDir = staging
	}
	return nil
}
