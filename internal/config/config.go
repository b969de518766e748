// Copyright 2025 AI Chatbot Widget Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates application configuration from a YAML
// file and environment variables. Environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Store   StoreConfig   `mapstructure:"store"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

// LLMConfig contains settings for the hosted completion API.
// An empty APIKey is valid: the response generator then runs in
// offline fallback mode rather than calling the provider.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StoreConfig contains persistence settings
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ScraperConfig contains website content acquisition settings
type ScraperConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxContentLength int           `mapstructure:"max_content_length"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// UploadConfig contains document upload settings
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CHATWIDGET")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origin", "*")

	// LLM defaults. The endpoint is OpenAI-compatible; Groq's API
	// works with the same client wire format.
	v.SetDefault("llm.endpoint", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.max_tokens", 150)
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.timeout", 30*time.Second)

	// Store defaults
	v.SetDefault("store.db_path", "./chatwidget.db")

	// Scraper defaults
	v.SetDefault("scraper.timeout", 10*time.Second)
	v.SetDefault("scraper.max_content_length", 5000)
	v.SetDefault("scraper.cache_ttl", 24*time.Hour)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	// Upload defaults
	v.SetDefault("upload.max_file_size", int64(5*1024*1024))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations; a missing file is fine, defaults and
	// environment variables still apply
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"GROQ_API_KEY":   "llm.api_key",
		"OPENAI_API_KEY": "llm.api_key",
		"LLM_ENDPOINT":   "llm.endpoint",
		"LLM_MODEL":      "llm.model",
		"STORE_DB_PATH":  "store.db_path",
		"LOG_LEVEL":      "logging.level",
		"LOG_FORMAT":     "logging.format",
		"LOG_OUTPUT":     "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	// llm.api_key is deliberately not required: without a key the
	// generator serves deterministic fallback responses, which keeps
	// the system demoable offline.

	if config.LLM.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.LLM.Temperature < 0 || config.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.Scraper.MaxContentLength <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scraper.max_content_length",
			Message: "max_content_length must be greater than 0",
		})
	}

	if config.Scraper.CacheTTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scraper.cache_ttl",
			Message: "cache_ttl must be greater than 0",
		})
	}

	if config.Upload.MaxFileSize <= 0 {
		errs = append(errs, ValidationError{
			Field:   "upload.max_file_size",
			Message: "max_file_size must be greater than 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if config.Store.DBPath == "" {
		errs = append(errs, ValidationError{
			Field:   "store.db_path",
			Message: "store database path is required",
		})
	} else if err := validateDirectoryExists(filepath.Dir(config.Store.DBPath)); err != nil {
		errs = append(errs, ValidationError{
			Field:   "store.db_path",
			Message: fmt.Sprintf("store database directory does not exist: %s", filepath.Dir(config.Store.DBPath)),
		})
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// HasAPIKey reports whether a usable completion API credential is configured.
// Placeholder values from example configs count as absent.
func (c *Config) HasAPIKey() bool {
	switch strings.TrimSpace(c.LLM.APIKey) {
	case "", "dummy-key", "your-groq-api-key-here":
		return false
	}
	return true
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.LLM.APIKey != "" {
		masked.LLM.APIKey = maskValue(masked.LLM.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Printf("Config file changed: %s\n", e.Name)

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config: %v\n", err)
			return
		}

		callback(config)
	})

	return nil
}
