package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Log     LogConfig     `mapstructure:"log"`
	UI      UIConfig      `mapstructure:"ui"`
	Server  ServerConfig  `mapstructure:"server"`
	R2      R2Config      `mapstructure:"r2"`
}

// ServiceConfig describes the remote analysis service the client talks to
type ServiceConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	UploadPath  string `mapstructure:"upload_path"`
	AnalyzePath string `mapstructure:"analyze_path"`
	Timeout     int    `mapstructure:"timeout"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

// RequestTimeout returns the per-request timeout
func (s ServiceConfig) RequestTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UIConfig holds user interface configuration
type UIConfig struct {
	ImagePreviewMethod string `mapstructure:"image_preview_method"`
	ProgressIntervalMS int    `mapstructure:"progress_interval_ms"`
}

// ProgressInterval returns how often the analyze progress bar advances
func (u UIConfig) ProgressInterval() time.Duration {
	return time.Duration(u.ProgressIntervalMS) * time.Millisecond
}

// ServerConfig holds settings for the local stand-in analysis service
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	Storage     string `mapstructure:"storage"`
	StorageDir  string `mapstructure:"storage_dir"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

// R2Config holds R2/S3 settings used when the stand-in service stores
// uploads in a bucket
type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
}

// Load loads configuration from multiple sources with priority:
// 1. Command line flags (highest)
// 2. Environment variables
// 3. Configuration file
// 4. Defaults (lowest)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DERMASCAN")
	v.AutomaticEnv()

	v.BindEnv("service.base_url", "DERMASCAN_BASE_URL")
	v.BindEnv("service.upload_path", "DERMASCAN_UPLOAD_PATH")
	v.BindEnv("service.analyze_path", "DERMASCAN_ANALYZE_PATH")
	v.BindEnv("service.timeout", "DERMASCAN_TIMEOUT")
	v.BindEnv("service.max_upload_mb", "DERMASCAN_MAX_UPLOAD_MB")
	v.BindEnv("log.level", "DERMASCAN_LOG_LEVEL")
	v.BindEnv("log.format", "DERMASCAN_LOG_FORMAT")
	v.BindEnv("ui.image_preview_method", "DERMASCAN_UI_IMAGE_PREVIEW_METHOD")
	v.BindEnv("ui.progress_interval_ms", "DERMASCAN_UI_PROGRESS_INTERVAL_MS")
	v.BindEnv("server.addr", "DERMASCAN_SERVER_ADDR")
	v.BindEnv("server.storage", "DERMASCAN_SERVER_STORAGE")
	v.BindEnv("server.storage_dir", "DERMASCAN_SERVER_STORAGE_DIR")
	v.BindEnv("server.max_upload_mb", "DERMASCAN_SERVER_MAX_UPLOAD_MB")
	v.BindEnv("r2.account_id", "DERMASCAN_R2_ACCOUNT_ID")
	v.BindEnv("r2.access_key_id", "DERMASCAN_R2_ACCESS_KEY_ID")
	v.BindEnv("r2.access_key_secret", "DERMASCAN_R2_ACCESS_KEY_SECRET")
	v.BindEnv("r2.bucket_name", "DERMASCAN_R2_BUCKET_NAME")
	v.BindEnv("r2.endpoint", "DERMASCAN_R2_ENDPOINT")
	v.BindEnv("r2.region", "DERMASCAN_R2_REGION")
	v.BindEnv("r2.prefix", "DERMASCAN_R2_PREFIX")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")

		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dermascan")
		v.AddConfigPath("/etc/dermascan/")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is not an error - we can use defaults and env vars
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("service.base_url", "http://localhost:5000")
	v.SetDefault("service.upload_path", "/upload")
	v.SetDefault("service.analyze_path", "/analyze")
	v.SetDefault("service.timeout", 60)
	v.SetDefault("service.max_upload_mb", 16)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("ui.image_preview_method", "auto")
	v.SetDefault("ui.progress_interval_ms", 150)

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.storage", "local")
	v.SetDefault("server.storage_dir", "uploads")
	v.SetDefault("server.max_upload_mb", 16)

	v.SetDefault("r2.endpoint", "auto")
	v.SetDefault("r2.region", "auto")
	v.SetDefault("r2.prefix", "uploads/")
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.toml"
	}
	return filepath.Join(homeDir, ".dermascan", "config.toml")
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() error {
	configPath := GetDefaultConfigPath()
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0700)
}
