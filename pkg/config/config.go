package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the harvester
type Config struct {
	// VK API access
	VK VKConfig `yaml:"vk" json:"vk"`

	// Database connection
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Harvest settings
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// VKConfig holds VK API specific configuration
type VKConfig struct {
	Token      string `yaml:"token" json:"token"`
	APIVersion string `yaml:"api_version" json:"api_version"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// HarvestConfig holds the per-run harvest parameters
type HarvestConfig struct {
	// Feeds is the list of group ids whose walls get harvested
	Feeds []int64 `yaml:"feeds" json:"feeds"`

	// RequestBudget is the total number of API calls a run may spend
	RequestBudget int `yaml:"request_budget" json:"request_budget"`

	// PageSize is the number of items fetched per page
	PageSize int `yaml:"page_size" json:"page_size"`

	// RetryDelay is the pause before the single transient-failure retry
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// RequestTimeout bounds a single HTTP call
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		VK: VKConfig{
			APIVersion: "5.95",
			BaseURL:    "https://api.vk.com/method",
		},
		Harvest: HarvestConfig{
			RequestBudget:  4500,
			PageSize:       100,
			RetryDelay:     3 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("VKHARVEST_TOKEN"); token != "" {
		c.VK.Token = token
	}
	if version := os.Getenv("VKHARVEST_API_VERSION"); version != "" {
		c.VK.APIVersion = version
	}
	if baseURL := os.Getenv("VKHARVEST_BASE_URL"); baseURL != "" {
		c.VK.BaseURL = baseURL
	}

	if dsn := os.Getenv("VKHARVEST_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}

	if budget := os.Getenv("VKHARVEST_REQUEST_BUDGET"); budget != "" {
		if val, err := strconv.Atoi(budget); err == nil && val > 0 {
			c.Harvest.RequestBudget = val
		}
	}

	if feeds := os.Getenv("VKHARVEST_FEEDS"); feeds != "" {
		parsed, err := ParseFeedList(feeds)
		if err != nil {
			return fmt.Errorf("invalid VKHARVEST_FEEDS: %w", err)
		}
		c.Harvest.Feeds = parsed
	}

	if logLevel := os.Getenv("VKHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("VKHARVEST_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".vkharvest.yaml",
		".vkharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "vkharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "vkharvest", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".vkharvest.yaml"),
		filepath.Join(os.Getenv("HOME"), ".vkharvest.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.VK.Token == "" {
		errs = append(errs, errors.New("VK access token is required"))
	}
	if c.VK.APIVersion == "" {
		errs = append(errs, errors.New("VK API version is required"))
	}
	if c.VK.BaseURL == "" {
		errs = append(errs, errors.New("VK base URL is required"))
	}

	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	if len(c.Harvest.Feeds) == 0 {
		errs = append(errs, errors.New("at least one feed id is required"))
	}
	for _, id := range c.Harvest.Feeds {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("feed id must be positive, got %d", id))
		}
	}
	if c.Harvest.RequestBudget <= 0 {
		errs = append(errs, errors.New("request budget must be positive"))
	}
	if c.Harvest.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Harvest.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}

	if len(errs) > 0 {
		var messages []string
		for _, err := range errs {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("configuration validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}

// ApplyFlags overlays command-line flag values onto the configuration
func (c *Config) ApplyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "token":
			if v, ok := value.(string); ok && v != "" {
				c.VK.Token = v
			}
		case "dsn":
			if v, ok := value.(string); ok && v != "" {
				c.Database.DSN = v
			}
		case "budget":
			if v, ok := value.(int); ok && v > 0 {
				c.Harvest.RequestBudget = v
			}
		case "feeds":
			if v, ok := value.([]int64); ok && len(v) > 0 {
				c.Harvest.Feeds = v
			}
		case "log-level":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.Level = v
			}
		}
	}
}

// Load builds the effective configuration: defaults, then .env, then the
// config file, then environment variables, then explicit flag overrides.
func Load(configFile string, flags map[string]interface{}) (*Config, error) {
	// Load .env file if present; a missing file is fine
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	cfg.ApplyFlags(flags)

	return cfg, nil
}

// ParseFeedList parses a comma-separated list of feed ids
func ParseFeedList(s string) ([]int64, error) {
	var feeds []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid feed id %q: %w", part, err)
		}
		feeds = append(feeds, id)
	}
	return feeds, nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
