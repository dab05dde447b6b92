// ABOUTME: Configuration loading and parsing for oakledger
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete oakledger configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Pools    PoolsConfig    `yaml:"pools"`
	Storage  StorageConfig  `yaml:"storage"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string `yaml:"addr"`

	ShutdownTimeout time.Duration `yaml:"-"`
	// Raw string value for YAML unmarshaling
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// ProviderConfig identifies the hosted identity provider
type ProviderConfig struct {
	Region       string `yaml:"region"`
	UserPoolID   string `yaml:"user_pool_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AdminGroup   string `yaml:"admin_group"`
}

// PoolsConfig names the identity pools used for credential federation
type PoolsConfig struct {
	Regular string `yaml:"regular"`
	Admin   string `yaml:"admin"`
}

// StorageConfig names the cloud-side tables and media bucket
type StorageConfig struct {
	ProfilesTable    string `yaml:"profiles_table"`
	AssetsTable      string `yaml:"assets_table"`
	LiabilitiesTable string `yaml:"liabilities_table"`
	MediaBucket      string `yaml:"media_bucket"`
	MediaPrefix      string `yaml:"media_prefix"`
}

// AuditConfig holds the local audit trail configuration
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Issuer returns the token issuer URL for the configured user pool.
func (p ProviderConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", p.Region, p.UserPoolID)
}

// JWKSURL returns the published signing-key set URL for the pool.
func (p ProviderConfig) JWKSURL() string {
	return p.Issuer() + "/.well-known/jwks.json"
}

// LoginsKey returns the provider name used as the login map key when
// exchanging pool tokens for scoped credentials.
func (p ProviderConfig) LoginsKey() string {
	return fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", p.Region, p.UserPoolID)
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Provider.AdminGroup == "" {
		cfg.Provider.AdminGroup = "admin"
	}
	if cfg.Storage.MediaPrefix == "" {
		cfg.Storage.MediaPrefix = "pictures"
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = "./data/audit.db"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Provider.Region == "" {
		return fmt.Errorf("provider.region is required")
	}
	if c.Provider.UserPoolID == "" {
		return fmt.Errorf("provider.user_pool_id is required")
	}
	if c.Provider.ClientID == "" {
		return fmt.Errorf("provider.client_id is required")
	}
	if c.Provider.ClientSecret == "" {
		return fmt.Errorf("provider.client_secret is required")
	}

	if c.Pools.Regular == "" {
		return fmt.Errorf("pools.regular is required")
	}
	if c.Pools.Admin == "" {
		return fmt.Errorf("pools.admin is required")
	}

	if c.Storage.ProfilesTable == "" {
		return fmt.Errorf("storage.profiles_table is required")
	}
	if c.Storage.AssetsTable == "" {
		return fmt.Errorf("storage.assets_table is required")
	}
	if c.Storage.LiabilitiesTable == "" {
		return fmt.Errorf("storage.liabilities_table is required")
	}
	if c.Storage.MediaBucket == "" {
		return fmt.Errorf("storage.media_bucket is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	return nil
}
