package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "appdeck.yaml"

// Storage backends for the persisted session and UI preferences
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendRedis   = "redis"
	BackendMemory  = "memory"
)

const (
	DefaultAPIBaseURL = "http://localhost:8000/api"
	DefaultWebURL     = "http://localhost:5173"
	DefaultTimeout    = 30 * time.Second
)

// ErrNotFound is returned when no config file exists in the directory tree
var ErrNotFound = errors.New(ConfigFileName + " not found")

// APIConfig points the client at the REST backend
type APIConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// RedisConfig is used when Storage.Backend is "redis"
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// StorageConfig selects where client state is persisted
type StorageConfig struct {
	Backend   string      `yaml:"backend"`
	StatePath string      `yaml:"statePath,omitempty"` // file backend; defaults to ~/.config/appdeck/state.json
	Redis     RedisConfig `yaml:"redis,omitempty"`
}

// LogConfig controls CLI diagnostics written to stderr
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console, json
}

// Config represents the CLI configuration file
type Config struct {
	API     APIConfig     `yaml:"api"`
	WebURL  string        `yaml:"webUrl,omitempty"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`

	// Path is the file the config was loaded from, empty for defaults
	Path string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIBaseURL,
			Timeout: DefaultTimeout,
		},
		WebURL: DefaultWebURL,
		Storage: StorageConfig{
			Backend: BackendKeyring,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "appdeck",
			},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// FindConfigFile searches for appdeck.yaml in dir and its parents
func FindConfigFile(dir string) (string, error) {
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", ErrNotFound
}

// Load reads the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Path = path

	return cfg, nil
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Resolve builds the effective configuration for dir: the nearest
// appdeck.yaml (or defaults), then .env files, then APPDECK_* variables.
func Resolve(dir string) (*Config, error) {
	cfg := DefaultConfig()

	path, err := FindConfigFile(dir)
	switch {
	case err == nil:
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	_ = godotenv.Load(filepath.Join(dir, ".env.local"))

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveFromCurrentDir resolves the configuration for the working directory
func ResolveFromCurrentDir() (*Config, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return Resolve(currentDir)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("APPDECK_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("APPDECK_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid APPDECK_API_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	if v := os.Getenv("APPDECK_WEB_URL"); v != "" {
		c.WebURL = v
	}
	if v := os.Getenv("APPDECK_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("APPDECK_STATE_PATH"); v != "" {
		c.Storage.StatePath = v
	}
	if v := os.Getenv("APPDECK_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("APPDECK_REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("APPDECK_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid APPDECK_REDIS_DB: %w", err)
		}
		c.Storage.Redis.DB = db
	}
	if v := os.Getenv("APPDECK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("APPDECK_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks the values a client cannot start without
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.baseUrl %q: must be an absolute http(s) URL", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api.baseUrl %q: unsupported scheme %q", c.API.BaseURL, u.Scheme)
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	switch c.Storage.Backend {
	case BackendKeyring, BackendFile, BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend %q, must be one of: keyring, file, redis, memory", c.Storage.Backend)
	}

	if c.API.Timeout <= 0 {
		c.API.Timeout = DefaultTimeout
	}
	return nil
}

// Scope identifies the backend the persisted state belongs to, so sessions
// for different servers don't overwrite each other.
func (c *Config) Scope() string {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return c.API.BaseURL
	}
	return u.Host
}
