package imagestore

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cordee/cordee-backend/internal/platform/envutil"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

type Mode string

const (
	ModeDisabled    Mode = ""
	ModeHTTP        Mode = "http"
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
)

type Config struct {
	Mode         Mode
	BackendURL   string
	Bucket       string
	EmulatorHost string
	Timeout      time.Duration
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingBackendURL   ConfigErrorCode = "missing_backend_url"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidURL          ConfigErrorCode = "invalid_url"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Mode  string
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid image store config"
	}
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid IMAGE_STORE_MODE=%q (allowed: %q, %q, %q)", e.Mode, ModeHTTP, ModeGCS, ModeGCSEmulator)
	case ConfigErrorMissingBackendURL:
		return fmt.Sprintf("IMAGE_STORE_MODE=%q requires IMAGE_BACKEND_URL to be set", e.Mode)
	case ConfigErrorMissingBucket:
		return fmt.Sprintf("IMAGE_STORE_MODE=%q requires IMAGE_GCS_BUCKET_NAME to be set", e.Mode)
	case ConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("IMAGE_STORE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", e.Mode)
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid url %q; expected absolute URL like http://images:8080", e.Value)
	default:
		return "invalid image store config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ConfigFromEnv reads the image store settings. With no mode set, a backend
// url selects http mode and an emulator host selects gcs_emulator; otherwise
// image file deletion is disabled.
func ConfigFromEnv(log *logger.Logger) (Config, error) {
	cfg := Config{
		Mode:         Mode(strings.ToLower(envutil.String("IMAGE_STORE_MODE", "", log))),
		BackendURL:   strings.TrimRight(envutil.String("IMAGE_BACKEND_URL", "", log), "/"),
		Bucket:       envutil.String("IMAGE_GCS_BUCKET_NAME", "", log),
		EmulatorHost: strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", "", log), "/"),
		Timeout:      envutil.Duration("IMAGE_BACKEND_TIMEOUT", 10*time.Second, log),
	}
	if cfg.Mode == ModeDisabled {
		switch {
		case cfg.BackendURL != "":
			cfg.Mode = ModeHTTP
		case cfg.EmulatorHost != "" && cfg.Bucket != "":
			cfg.Mode = ModeGCSEmulator
		}
	}
	return cfg, Validate(cfg)
}

func Validate(cfg Config) error {
	switch cfg.Mode {
	case ModeDisabled:
		return nil
	case ModeHTTP:
		if cfg.BackendURL == "" {
			return &ConfigError{Code: ConfigErrorMissingBackendURL, Mode: string(cfg.Mode)}
		}
		return validateURL(cfg.BackendURL)
	case ModeGCS, ModeGCSEmulator:
		if cfg.Bucket == "" {
			return &ConfigError{Code: ConfigErrorMissingBucket, Mode: string(cfg.Mode)}
		}
		if cfg.Mode == ModeGCS {
			return nil
		}
		if cfg.EmulatorHost == "" {
			return &ConfigError{Code: ConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
		}
		return validateURL(cfg.EmulatorHost)
	default:
		return &ConfigError{Code: ConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: raw, Cause: err}
	}
	return nil
}
