// Package config loads orbit settings from an optional YAML file, then lets
// environment variables (including those from a .env file) override them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends selectable with STORAGE_TYPE.
const (
	StorageMemory     = "memory"
	StorageFilesystem = "filesystem"
	StorageSQLite     = "sqlite"
	StoragePostgres   = "postgres"
	StorageS3         = "s3"
)

const defaultSQLiteFile = "orbit.db"

// Config holds the application configuration.
type Config struct {
	Listen  string  `yaml:"listen"`
	Storage Storage `yaml:"storage"`
	Auth    Auth    `yaml:"auth"`
	Log     Log     `yaml:"log"`
	Client  Client  `yaml:"client"`
}

// Storage selects and configures the server-side item store.
type Storage struct {
	Type           string `yaml:"type"`
	LocalPath      string `yaml:"local_path"`       // filesystem
	DataSourceName string `yaml:"data_source_name"` // sqlite file or postgres DSN
	Bucket         string `yaml:"bucket"`           // s3
	Endpoint       string `yaml:"endpoint"`         // s3-compatible services
}

// Auth configures bearer tokens. An empty secret disables authentication and
// the user is taken from the user_id query parameter.
type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // rotated with lumberjack when set
}

// Client configures the commands that talk to a running API.
type Client struct {
	APIURL    string `yaml:"api_url"`
	Token     string `yaml:"token"`
	UserID    string `yaml:"user_id"`
	PrefsPath string `yaml:"prefs_path"`
	PageSize  int    `yaml:"page_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen: ":3002",
		Storage: Storage{
			Type:      StorageMemory,
			LocalPath: "./data",
		},
		Auth: Auth{TokenTTL: 7 * 24 * time.Hour},
		Log:  Log{Level: "info", Format: "text"},
		Client: Client{
			APIURL:   "http://localhost:3002",
			PageSize: 20,
		},
	}
}

// Load reads configuration from configPath (skipped when empty or missing),
// loads a .env file from the working directory if present, and applies
// environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// A missing .env is normal; existing environment variables win over it.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STORAGE_TYPE":       &c.Storage.Type,
		"LOCAL_STORAGE_PATH": &c.Storage.LocalPath,
		"DATA_SOURCE_NAME":   &c.Storage.DataSourceName,
		"S3_BUCKET_NAME":     &c.Storage.Bucket,
		"S3_ENDPOINT":        &c.Storage.Endpoint,
		"JWT_SECRET":         &c.Auth.JWTSecret,
		"ORBIT_LISTEN":       &c.Listen,
		"ORBIT_LOG_LEVEL":    &c.Log.Level,
		"ORBIT_LOG_FORMAT":   &c.Log.Format,
		"ORBIT_LOG_FILE":     &c.Log.File,
		"ORBIT_API_URL":      &c.Client.APIURL,
		"ORBIT_TOKEN":        &c.Client.Token,
		"ORBIT_USER_ID":      &c.Client.UserID,
		"ORBIT_PREFS_PATH":   &c.Client.PrefsPath,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("ORBIT_TOKEN_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ORBIT_TOKEN_TTL: %w", err)
		}
		c.Auth.TokenTTL = ttl
	}
	if v, ok := lookup("ORBIT_PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ORBIT_PAGE_SIZE: %w", err)
		}
		c.Client.PageSize = n
	}
	return nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Storage.Type == "" {
		c.Storage.Type = defaults.Storage.Type
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = defaults.Storage.LocalPath
	}
	if c.Storage.DataSourceName == "" && c.Storage.Type == StorageSQLite {
		c.Storage.DataSourceName = defaultSQLiteFile
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = defaults.Auth.TokenTTL
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Client.PageSize == 0 {
		c.Client.PageSize = defaults.Client.PageSize
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageFilesystem, StorageSQLite:
	case StoragePostgres:
		if c.Storage.DataSourceName == "" {
			return fmt.Errorf("storage.data_source_name is required for postgres")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket (S3_BUCKET_NAME) is required for s3")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}
	if c.Client.PageSize < 1 {
		return fmt.Errorf("client.page_size must be at least 1")
	}
	return nil
}
