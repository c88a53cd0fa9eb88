package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration file is looked up
const DefaultPath = "config/config.yaml"

// Backend names
const (
	BackendDrive = "drive"
	BackendS3    = "s3"
)

// Google authentication modes
const (
	AuthServiceAccount = "service_account"
	AuthOAuth          = "oauth"
)

// Config represents the complete application configuration
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	Destination DestinationConfig `yaml:"destination"`
	Google      GoogleConfig      `yaml:"google"`
	S3          S3Config          `yaml:"s3"`
	Transfer    TransferConfig    `yaml:"transfer"`
	Workers     WorkersConfig     `yaml:"workers"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// TelegramConfig contains Bot API settings
type TelegramConfig struct {
	Token        string `yaml:"token" env:"TELEGRAM_TOKEN" validate:"required"`
	APIEndpoint  string `yaml:"api_endpoint,omitempty" env:"TELEGRAM_API_ENDPOINT"`
	FileEndpoint string `yaml:"file_endpoint,omitempty" env:"TELEGRAM_FILE_ENDPOINT"`
	PollTimeout  int    `yaml:"poll_timeout" env:"TELEGRAM_POLL_TIMEOUT" validate:"gte=0"`
}

// DestinationConfig selects the storage backend and where objects go
type DestinationConfig struct {
	Backend             string `yaml:"backend" env:"RELAY_BACKEND" validate:"oneof=drive s3"`
	Placement           string `yaml:"placement" env:"RELAY_PLACEMENT" validate:"oneof=flat per_item_folder"`
	ReuseExistingFolder bool   `yaml:"reuse_existing_folder" env:"RELAY_REUSE_EXISTING_FOLDER"`
	FolderLabel         string `yaml:"folder_label,omitempty" env:"RELAY_FOLDER_LABEL"`
}

// GoogleConfig contains Google Drive settings
type GoogleConfig struct {
	AuthMode        string `yaml:"auth_mode" env:"GOOGLE_AUTH_MODE" validate:"omitempty,oneof=service_account oauth"`
	CredentialsFile string `yaml:"credentials_file,omitempty" env:"GOOGLE_CREDENTIALS_FILE"`
	CredentialsJSON string `yaml:"credentials_json,omitempty" env:"GOOGLE_CREDENTIALS"`
	TokenFile       string `yaml:"token_file,omitempty" env:"GOOGLE_TOKEN_FILE"`
	FolderID        string `yaml:"folder_id" env:"DRIVE_FOLDER_ID"`
}

// S3Config contains S3 compatible storage settings
type S3Config struct {
	Endpoint     string        `yaml:"endpoint,omitempty" env:"S3_ENDPOINT" validate:"omitempty,url"`
	Bucket       string        `yaml:"bucket,omitempty" env:"S3_BUCKET"`
	Region       string        `yaml:"region,omitempty" env:"S3_REGION"`
	AccessKey    string        `yaml:"access_key,omitempty" env:"S3_ACCESS_KEY"`
	SecretKey    string        `yaml:"secret_key,omitempty" env:"S3_SECRET_KEY"`
	Prefix       string        `yaml:"prefix,omitempty" env:"S3_PREFIX"`
	UsePathStyle bool          `yaml:"use_path_style" env:"S3_USE_PATH_STYLE"`
	PresignTTL   time.Duration `yaml:"presign_ttl" env:"S3_PRESIGN_TTL" validate:"gte=0,lte=168h"`
}

// TransferConfig contains the pipeline limits
type TransferConfig struct {
	MaxFileSize      int64         `yaml:"max_file_size" env:"RELAY_MAX_FILE_SIZE" validate:"gt=0"`
	ProgressInterval time.Duration `yaml:"progress_interval" env:"RELAY_PROGRESS_INTERVAL" validate:"gt=0"`
	StagingDir       string        `yaml:"staging_dir" env:"RELAY_STAGING_DIR" validate:"required"`
}

// WorkersConfig sizes the worker pools
type WorkersConfig struct {
	Publish int `yaml:"publish" env:"RELAY_PUBLISH_WORKERS" validate:"gte=1,lte=64"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json console"`
	Output string `yaml:"output,omitempty" env:"LOG_OUTPUT"`
}

// MetricsConfig contains the Prometheus listener settings
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// Defaults returns the configuration used for keys the file leaves out
func Defaults() Config {
	return Config{
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Destination: DestinationConfig{
			Backend:   BackendDrive,
			Placement: "flat",
		},
		Google: GoogleConfig{
			AuthMode:  AuthServiceAccount,
			TokenFile: "token.json",
		},
		S3: S3Config{
			Region:     "us-east-1",
			PresignTTL: 7 * 24 * time.Hour,
		},
		Transfer: TransferConfig{
			MaxFileSize:      2 * 1024 * 1024 * 1024,
			ProgressInterval: 5 * time.Second,
			StagingDir:       "downloads",
		},
		Workers: WorkersConfig{
			Publish: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and parses the configuration from the specified YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Resolve builds the runtime configuration: defaults, then the YAML file if
// it exists, then environment variables (including a .env file in the working
// directory). The result is validated.
func Resolve(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		d := Defaults()
		cfg, err = &d, nil
	}
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg, os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the variables present in environ. Variables
// that are not set leave the current value alone.
func ApplyEnv(cfg *Config, environ []string) error {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := env.Unmarshal(es, cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file. The file holds
// credentials so it is only readable by the owner.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
