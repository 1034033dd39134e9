package config

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/model"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	ServerPort  string
	MySQLDSN    string
	DBLogLevel  string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CachePrefix string
	CacheTTL    time.Duration
	JWTSecret   string
	SwaggerHost string

	// MaxDepth bounds relation nesting in representations.
	MaxDepth int
	// ClientID and either ClientSecret or ClientSecretHash (bcrypt) identify
	// the API client allowed to write records.
	ClientID         string
	ClientSecret     string
	ClientSecretHash string

	VisibilityFile string
	// Visibility holds per-resource overrides read from VisibilityFile.
	Visibility map[string]model.Visibility
}

// visibilityFile is the layout of the VISIBILITY_FILE document.
type visibilityFile struct {
	Resources map[string]model.Visibility `yaml:"resources"`
}

// LoadDotEnv preloads variables from .env files that exist. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "load .env")
	}
	return nil
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "production"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		MySQLDSN:         getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"),
		DBLogLevel:       getEnv("DB_LOG_LEVEL", "warn"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisPass:        os.Getenv("REDIS_PASSWORD"),
		CachePrefix:      getEnv("CACHE_PREFIX", "modelnormalizer:"),
		CacheTTL:         getEnvDuration("CACHE_TTL", 5*time.Minute),
		JWTSecret:        getEnv("JWT_SECRET", "change-me"),
		SwaggerHost:      os.Getenv("SWAGGER_HOST"),
		MaxDepth:         getEnvInt("MAX_DEPTH", 32),
		ClientID:         getEnv("API_CLIENT_ID", "seeder"),
		ClientSecret:     os.Getenv("API_CLIENT_SECRET"),
		ClientSecretHash: os.Getenv("API_CLIENT_SECRET_HASH"),
		VisibilityFile:   os.Getenv("VISIBILITY_FILE"),
	}

	if cfg.VisibilityFile != "" {
		f, err := os.Open(cfg.VisibilityFile)
		if err != nil {
			return nil, errors.Wrap(err, "open visibility file")
		}
		defer f.Close()
		if cfg.Visibility, err = LoadVisibility(f); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadVisibility parses a visibility override document:
//
//	resources:
//	  accounts:
//	    hidden: [password_hash, email]
func LoadVisibility(r io.Reader) (map[string]model.Visibility, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read visibility file")
	}
	doc := visibilityFile{}
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, errors.Wrapf(apperrors.ErrInvalidConfiguration, "parse visibility file: %v", err)
	}
	return doc.Resources, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if c.MaxDepth < 1 {
		return errors.Wrapf(apperrors.ErrInvalidConfiguration, "MAX_DEPTH must be positive, got %d", c.MaxDepth)
	}
	if c.CacheTTL < 0 {
		return errors.Wrapf(apperrors.ErrInvalidConfiguration, "CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	if c.ClientSecret != "" && c.ClientSecretHash != "" {
		return errors.Wrap(apperrors.ErrInvalidConfiguration, "set only one of API_CLIENT_SECRET and API_CLIENT_SECRET_HASH")
	}
	return nil
}

// ApplyVisibility registers the visibility overrides with registry.
func (c *Config) ApplyVisibility(registry *model.Registry) error {
	for resource, v := range c.Visibility {
		if err := registry.SetVisibility(resource, v); err != nil {
			return errors.Wrapf(apperrors.ErrInvalidConfiguration, "visibility for %q: %v", resource, err)
		}
	}
	return nil
}

// IsDevelopment reports whether APP_ENV selects development behaviour.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
