package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateBackend, Config{})
	return v
}

// validateBackend checks the settings the selected backend needs
func validateBackend(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	switch cfg.Destination.Backend {
	case BackendDrive:
		g := cfg.Google
		if g.FolderID == "" {
			sl.ReportError(g.FolderID, "google.folder_id", "FolderID", "required_for_drive", "")
		}
		switch g.AuthMode {
		case AuthOAuth:
			if g.CredentialsFile == "" {
				sl.ReportError(g.CredentialsFile, "google.credentials_file", "CredentialsFile", "required_for_oauth", "")
			}
			if g.TokenFile == "" {
				sl.ReportError(g.TokenFile, "google.token_file", "TokenFile", "required_for_oauth", "")
			}
		default:
			if g.CredentialsFile == "" && g.CredentialsJSON == "" {
				sl.ReportError(g.CredentialsFile, "google.credentials_file", "CredentialsFile", "required_for_drive", "")
			}
		}
	case BackendS3:
		if cfg.S3.Bucket == "" {
			sl.ReportError(cfg.S3.Bucket, "s3.bucket", "Bucket", "required_for_s3", "")
		}
		if (cfg.S3.AccessKey == "") != (cfg.S3.SecretKey == "") {
			sl.ReportError(cfg.S3.SecretKey, "s3.secret_key", "SecretKey", "key_pair", "")
		}
	}
}

// Validate checks required keys and value ranges
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	key := fieldKey(fe)
	switch fe.Tag() {
	case "required", "required_for_drive", "required_for_s3", "required_for_oauth":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", key, fe.Param())
	case "key_pair":
		return "s3.access_key and s3.secret_key must be set together"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", key, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", key, fe.Tag())
}

// fieldKey turns "Config.transfer.max_file_size" into "transfer.max_file_size".
// Struct level errors already carry the dotted key as their field name.
func fieldKey(fe validator.FieldError) string {
	if strings.Contains(fe.Field(), ".") {
		return fe.Field()
	}
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
