package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit   string   `mapstructure:"BODY_LIMIT"`

	// Template PDF and scratch storage.
	TemplateDir    string `mapstructure:"TEMPLATE_DIR"`
	TempDir        string `mapstructure:"TEMP_DIR"`
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`

	// S3/MinIO settings, used when STORAGE_BACKEND=s3.
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "20M")
	v.SetDefault("TEMPLATE_DIR", "./data/templates")
	v.SetDefault("TEMP_DIR", "")
	v.SetDefault("STORAGE_BACKEND", "disk")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("TEMPLATE_DIR")
	v.BindEnv("TEMP_DIR")
	v.BindEnv("STORAGE_BACKEND")
	v.BindEnv("S3_ENDPOINT")
	v.BindEnv("S3_ACCESS_KEY")
	v.BindEnv("S3_SECRET_KEY")
	v.BindEnv("S3_BUCKET")
	v.BindEnv("S3_USE_SSL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UsesPostgres reports whether DATABASE_URL points at a Postgres server.
// Anything else is treated as a SQLite database path.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// SQLitePath returns the database file path for the SQLite backend,
// stripping an optional sqlite: scheme prefix.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite:")
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "disk", "memory":
	case "s3":
		if c.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required when STORAGE_BACKEND is \"s3\"")
		}
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"disk\", \"memory\", or \"s3\", got %q", c.StorageBackend)
	}

	if c.StorageBackend == "disk" && c.TemplateDir == "" {
		return fmt.Errorf("TEMPLATE_DIR is required when STORAGE_BACKEND is \"disk\"")
	}

	return nil
}
