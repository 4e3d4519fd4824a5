package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration and returns an error if invalid
func Validate(config *Config) error {
	if err := validateServiceConfig(&config.Service); err != nil {
		return fmt.Errorf("service config validation failed: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}

	if err := validateUIConfig(&config.UI); err != nil {
		return fmt.Errorf("ui config validation failed: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	// R2 credentials are only needed when the stand-in service writes to a bucket
	if strings.EqualFold(config.Server.Storage, "r2") {
		if err := ValidateR2Config(&config.R2); err != nil {
			return fmt.Errorf("R2 config validation failed: %w", err)
		}
	}

	return nil
}

// validateServiceConfig validates the analysis service endpoint settings
func validateServiceConfig(config *ServiceConfig) error {
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %q", config.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https, got: %s", u.Scheme)
	}

	if !strings.HasPrefix(config.UploadPath, "/") {
		return fmt.Errorf("upload_path must start with '/', got: %q", config.UploadPath)
	}
	if !strings.HasPrefix(config.AnalyzePath, "/") {
		return fmt.Errorf("analyze_path must start with '/', got: %q", config.AnalyzePath)
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %d", config.Timeout)
	}
	if config.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got: %d", config.MaxUploadMB)
	}

	return nil
}

// validateLogConfig validates log configuration
func validateLogConfig(config *LogConfig) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	level := strings.ToLower(config.Level)
	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error, fatal, panic)", config.Level)
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}

	format := strings.ToLower(config.Format)
	if !validFormats[format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", config.Format)
	}

	return nil
}

// validateUIConfig validates user interface configuration
func validateUIConfig(config *UIConfig) error {
	switch strings.ToLower(config.ImagePreviewMethod) {
	case "auto", "text", "graphics":
	default:
		return fmt.Errorf("invalid image_preview_method: %s (valid: auto, text, graphics)", config.ImagePreviewMethod)
	}

	if config.ProgressIntervalMS <= 0 {
		return fmt.Errorf("progress_interval_ms must be positive, got: %d", config.ProgressIntervalMS)
	}

	return nil
}

// validateServerConfig validates the stand-in service configuration
func validateServerConfig(config *ServerConfig) error {
	if strings.TrimSpace(config.Addr) == "" {
		return fmt.Errorf("addr is required")
	}

	switch strings.ToLower(config.Storage) {
	case "local":
		if strings.TrimSpace(config.StorageDir) == "" {
			return fmt.Errorf("storage_dir is required for local storage")
		}
	case "r2":
	default:
		return fmt.Errorf("invalid storage: %s (valid: local, r2)", config.Storage)
	}

	if config.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got: %d", config.MaxUploadMB)
	}

	return nil
}

// ValidateR2Config validates R2 specific configuration
func ValidateR2Config(config *R2Config) error {
	if strings.TrimSpace(config.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}

	if strings.TrimSpace(config.AccessKeyID) == "" {
		return fmt.Errorf("access_key_id is required")
	}

	if strings.TrimSpace(config.AccessKeySecret) == "" {
		return fmt.Errorf("access_key_secret is required")
	}

	if strings.TrimSpace(config.BucketName) == "" {
		return fmt.Errorf("bucket_name is required")
	}

	// Simplified S3 bucket name rules
	if !isValidBucketName(config.BucketName) {
		return fmt.Errorf("invalid bucket_name format: %s", config.BucketName)
	}

	return nil
}

// isValidBucketName checks if the bucket name follows basic S3 naming rules
func isValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}

	// Must start and end with letter or number
	if !isAlphaNum(name[0]) || !isAlphaNum(name[len(name)-1]) {
		return false
	}

	for i, char := range name {
		if !isAlphaNum(byte(char)) && char != '-' && char != '.' {
			return false
		}

		// Cannot have consecutive periods or period-dash combinations
		if i > 0 {
			prev := name[i-1]
			if char == '.' && (prev == '.' || prev == '-') {
				return false
			}
			if char == '-' && prev == '.' {
				return false
			}
		}
	}

	return true
}

// isAlphaNum checks if a byte is alphanumeric
func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
