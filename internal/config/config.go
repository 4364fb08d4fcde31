package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlatformCredentials holds the login of one streaming platform
type PlatformCredentials struct {
	Email    string
	Password string
	BaseURL  string // overrides the profile default when set
}

// Config holds all application configuration
type Config struct {
	// Platforms
	Platforms   []string                       // e.g. primeran.eus, makusi.eus, etbon.eus
	Credentials map[string]PlatformCredentials // keyed by platform name
	Language    string                         // manifest language, e.g. "eu"

	// Scraping
	RequestDelay  time.Duration // pause between platform requests (default: 500ms)
	ItemLimit     int           // stop a run after this many items (0 = no limit)
	MaxDepth      int           // recursion cap for listing walks
	SearchQueries []string      // extra search discovery sources
	HTTPTimeout   time.Duration
	UserAgent     string

	// Database
	DatabaseDriver string // sqlite, postgres or mysql
	DatabaseDSN    string // $CONFIG_DIR/geowatch.db for sqlite

	// Paths
	ExportDir  string // JSON exports for the dashboard
	IgnoreFile string // $CONFIG_DIR/ignore.txt

	// Server
	ServerPort string
	Schedule   string // cron expression for periodic runs

	// Logging
	LogLevel string
	LogFile  string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("PLATFORMS", "primeran.eus")
	viper.SetDefault("LANGUAGE", "eu")
	viper.SetDefault("REQUEST_DELAY", "500ms")
	viper.SetDefault("ITEM_LIMIT", 0)
	viper.SetDefault("MAX_DEPTH", 32)
	viper.SetDefault("HTTP_TIMEOUT", "30s")
	viper.SetDefault("USER_AGENT", "geowatch/1.0")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("EXPORT_DIR", "dashboard/data")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SCHEDULE", "0 3 * * *")
	viper.SetDefault("LOG_LEVEL", "info")

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "geowatch")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		Platforms:   splitList(viper.GetString("PLATFORMS")),
		Credentials: make(map[string]PlatformCredentials),
		Language:    viper.GetString("LANGUAGE"),

		RequestDelay:  viper.GetDuration("REQUEST_DELAY"),
		ItemLimit:     viper.GetInt("ITEM_LIMIT"),
		MaxDepth:      viper.GetInt("MAX_DEPTH"),
		SearchQueries: splitList(viper.GetString("SEARCH_QUERIES")),
		HTTPTimeout:   viper.GetDuration("HTTP_TIMEOUT"),
		UserAgent:     viper.GetString("USER_AGENT"),

		DatabaseDriver: viper.GetString("DATABASE_DRIVER"),
		DatabaseDSN:    viper.GetString("DATABASE_DSN"),

		ExportDir:  viper.GetString("EXPORT_DIR"),
		IgnoreFile: filepath.Join(configDir, "ignore.txt"),

		ServerPort: viper.GetString("SERVER_PORT"),
		Schedule:   viper.GetString("SCHEDULE"),

		LogLevel: viper.GetString("LOG_LEVEL"),
		LogFile:  viper.GetString("LOG_FILE"),
	}

	if file := viper.GetString("IGNORE_FILE"); file != "" {
		config.IgnoreFile = file
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(configDir, "geowatch.db")
	}

	for _, platform := range config.Platforms {
		prefix := EnvPrefix(platform)
		config.Credentials[platform] = PlatformCredentials{
			Email:    viper.GetString(prefix + "_EMAIL"),
			Password: viper.GetString(prefix + "_PASSWORD"),
			BaseURL:  viper.GetString(prefix + "_BASE_URL"),
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the fields every command relies on
func (c *Config) Validate() error {
	if len(c.Platforms) == 0 {
		return fmt.Errorf("PLATFORMS is required")
	}
	if c.Language == "" {
		return fmt.Errorf("LANGUAGE is required")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY must not be negative")
	}
	if c.ItemLimit < 0 {
		return fmt.Errorf("ITEM_LIMIT must not be negative")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("MAX_DEPTH must be positive")
	}
	return nil
}

// EnvPrefix turns a platform name into its environment prefix (primeran.eus -> PRIMERAN)
func EnvPrefix(platform string) string {
	name, _, _ := strings.Cut(platform, ".")
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
