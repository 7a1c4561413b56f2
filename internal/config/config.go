package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Azure    AzureConfig
	Therapy  TherapyConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	OpenAI  OpenAIConfig
	Storage StorageConfig
}

// OpenAIConfig holds Azure OpenAI configuration. All fields optional:
// when unset, reports are generated without the AI advice section.
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
}

// StorageConfig holds Azure Blob Storage configuration
type StorageConfig struct {
	AccountName      string
	AccountKey       string
	ConnectionString string
	BlobEndpoint     string
	ReportContainer  string
}

// TherapyConfig holds session protocol configuration
type TherapyConfig struct {
	// DurationScale divides session durations for demo runs.
	// 1 means real time; 60 turns a 30 minute session into 30 seconds.
	DurationScale float64
}

// SecurityConfig holds data-protection configuration
type SecurityConfig struct {
	// ReportEncryptionKey is a hex-encoded 32-byte AES-256 key. When set,
	// report PDFs are encrypted before upload to blob storage. Optional.
	ReportEncryptionKey string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	// Azure Storage defaults
	v.SetDefault("azure.storage.reportcontainer", "therapy-reports")

	// Therapy defaults
	v.SetDefault("therapy.durationscale", 1.0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Azure OpenAI
	v.BindEnv("azure.openai.endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("azure.openai.apikey", "AZURE_OPENAI_API_KEY")
	v.BindEnv("azure.openai.deployment", "AZURE_OPENAI_DEPLOYMENT")

	// Azure Storage
	v.BindEnv("azure.storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("azure.storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("azure.storage.connectionstring", "AZURE_STORAGE_CONNECTION_STRING")
	v.BindEnv("azure.storage.blobendpoint", "AZURE_STORAGE_BLOB_ENDPOINT")
	v.BindEnv("azure.storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	// Therapy
	v.BindEnv("therapy.durationscale", "THERAPY_DURATION_SCALE")

	// Security
	v.BindEnv("security.reportencryptionkey", "REPORT_ENCRYPTION_KEY")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate required fields
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Azure.Storage.ConnectionString == "" && (c.Azure.Storage.AccountName == "" || c.Azure.Storage.AccountKey == "") {
		return fmt.Errorf("azure storage credentials are required (either connection string or account name + key)")
	}

	// OpenAI is optional, but when configured it must be complete
	if c.Azure.OpenAI.Endpoint != "" || c.Azure.OpenAI.APIKey != "" || c.Azure.OpenAI.Deployment != "" {
		if c.Azure.OpenAI.Endpoint == "" || c.Azure.OpenAI.APIKey == "" || c.Azure.OpenAI.Deployment == "" {
			return fmt.Errorf("azure.openai requires endpoint, apikey and deployment when any is set")
		}
	}

	if c.Therapy.DurationScale <= 0 {
		return fmt.Errorf("therapy.durationscale must be positive")
	}

	if c.Security.ReportEncryptionKey != "" {
		key, err := hex.DecodeString(c.Security.ReportEncryptionKey)
		if err != nil {
			return fmt.Errorf("security.reportencryptionkey must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("security.reportencryptionkey must decode to 32 bytes, got %d", len(key))
		}
	}

	return nil
}

// ReportEncryptionKey returns the decoded AES key, or nil when encryption
// at rest is not configured. Call after Validate.
func (c *Config) ReportEncryptionKey() []byte {
	if c.Security.ReportEncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.Security.ReportEncryptionKey)
	if err != nil {
		return nil
	}
	return key
}

// OpenAIEnabled reports whether AI advice generation is configured.
func (c *Config) OpenAIEnabled() bool {
	return c.Azure.OpenAI.Endpoint != "" && c.Azure.OpenAI.APIKey != "" && c.Azure.OpenAI.Deployment != ""
}
