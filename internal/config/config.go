package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata" // billing.timezone must resolve in minimal images

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the lingometer API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	Quota    QuotaConfig    `yaml:"quota"`
	Billing  BillingConfig  `yaml:"billing"`
	CORS     CORSConfig     `yaml:"cors"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Audience  string `yaml:"audience"` // empty disables the aud check
	LeewaySec int    `yaml:"leeway_sec"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // postgres, redis (default: postgres)
	DSN              string   `yaml:"dsn"`    // postgres
	Addrs            []string `yaml:"addrs"`  // redis
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	AutoMigrate      bool     `yaml:"auto_migrate"`
	TablePrefix      string   `yaml:"table_prefix"`
}

// ProviderConfig holds translation provider settings.
type ProviderConfig struct {
	Name              string  `yaml:"name"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float32 `yaml:"temperature"`
	DefaultTargetLang string  `yaml:"default_target_lang"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	HealthCheck       bool    `yaml:"health_check"`
}

// QuotaConfig holds quota enforcement settings.
type QuotaConfig struct {
	DefaultMonthlyTokens int    `yaml:"default_monthly_tokens"`
	Consistency          string `yaml:"consistency"` // baseline, serialized, atomic (default)
	CommitTimeoutSec     int    `yaml:"commit_timeout_sec"`
}

// BillingConfig holds billing period settings.
type BillingConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone.
func (b BillingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("billing.timezone: %w", err)
	}
	return loc, nil
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data and decodes, defaults and validates it.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 55
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "zhipu"
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://open.bigmodel.cn/api/paas/v4/"
	}
	if c.Provider.Model == "" {
		c.Provider.Model = "GLM-4-Flash-250414"
	}
	if c.Provider.MaxTokens <= 0 {
		c.Provider.MaxTokens = 2048
	}
	if c.Provider.Temperature <= 0 {
		c.Provider.Temperature = 0.3
	}
	if c.Provider.DefaultTargetLang == "" {
		c.Provider.DefaultTargetLang = "英文"
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 45
	}
	if c.Quota.DefaultMonthlyTokens <= 0 {
		c.Quota.DefaultMonthlyTokens = 50000
	}
	if c.Quota.Consistency == "" {
		c.Quota.Consistency = "atomic"
	}
	if c.Quota.CommitTimeoutSec <= 0 {
		c.Quota.CommitTimeoutSec = 5
	}
	if c.Billing.Timezone == "" {
		c.Billing.Timezone = "UTC"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "lingometer:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", DriverPostgres)
		}
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverRedis, c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	switch c.Quota.Consistency {
	case "baseline", "serialized", "atomic":
		// ok
	default:
		return fmt.Errorf(
			"quota.consistency must be \"baseline\", \"serialized\" or \"atomic\", got %q",
			c.Quota.Consistency,
		)
	}
	if _, err := c.Billing.Location(); err != nil {
		return err
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
