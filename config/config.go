// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Database – DB_DRIVER selects PostgreSQL (default) or an embedded SQLite file.
	DBDriver    string
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string
	SQLitePath  string

	// JWT signing secret (required by the API server).
	JWTSecret string

	// Server
	Debug      bool
	Port       string
	TLSDomains []string
	AdminUsers []string

	Import     ImportConfig
	Cardmarket CardmarketConfig

	// MySQL – used only by `cardctl migrate` to read a legacy catalog.
	MySQLDSN string
}

// ImportConfig controls the bulk card import.
type ImportConfig struct {
	SourceURL string
	BatchSize int
	// Timeout bounds the download of the dump.
	Timeout time.Duration
	// JobTimeout bounds a whole admin-triggered run; zero means no deadline.
	JobTimeout time.Duration
	Workers    int
}

// CardmarketConfig holds the marketplace credentials and limits.
type CardmarketConfig struct {
	BaseURL      string
	AppToken     string
	AppSecret    string
	AccessToken  string
	AccessSecret string
	Timeout      time.Duration
	DailyLimit   int
	RequestDelay time.Duration
	PriceTTL     time.Duration
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	cfg, err := fromViper(newViper())
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func fromViper(v *viper.Viper) (*Config, error) {
	// Defaults
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_USER", "padraic")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "mtgvault")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "mtgvault.db")
	v.SetDefault("PORT", ":9000")
	v.SetDefault("TLS_DOMAINS", "")
	v.SetDefault("ADMIN_USERS", "admin")
	v.SetDefault("DEBUG", false)

	v.SetDefault("MTG_CARDS_JSON_URL", "https://mtgjson.com/api/v5/AllCards.json")
	v.SetDefault("MTG_IMPORT_BATCH_SIZE", 500)
	v.SetDefault("MTG_IMPORT_TIMEOUT", 300*time.Second)
	v.SetDefault("MTG_IMPORT_WORKERS", 1)
	v.SetDefault("MTG_IMPORT_JOB_TIMEOUT", 0)

	v.SetDefault("CARDMARKET_BASE_URL", "https://api.cardmarket.com/ws/v2.0")
	v.SetDefault("CARDMARKET_TIMEOUT", 5*time.Second)
	v.SetDefault("CARDMARKET_DAILY_LIMIT", 30000)
	v.SetDefault("CARDMARKET_REQUEST_DELAY", 100*time.Millisecond)
	v.SetDefault("MTG_CACHE_PRICES", 1800*time.Second)

	cfg := &Config{
		DBDriver:    strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),
		SQLitePath:  v.GetString("SQLITE_PATH"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		Debug:       v.GetBool("DEBUG"),
		Port:        v.GetString("PORT"),
		TLSDomains:  splitTrimmed(v.GetString("TLS_DOMAINS")),
		AdminUsers:  splitTrimmed(v.GetString("ADMIN_USERS")),
		Import: ImportConfig{
			SourceURL:  v.GetString("MTG_CARDS_JSON_URL"),
			BatchSize:  v.GetInt("MTG_IMPORT_BATCH_SIZE"),
			Timeout:    seconds(v, "MTG_IMPORT_TIMEOUT"),
			JobTimeout: seconds(v, "MTG_IMPORT_JOB_TIMEOUT"),
			Workers:    v.GetInt("MTG_IMPORT_WORKERS"),
		},
		Cardmarket: CardmarketConfig{
			BaseURL:      strings.TrimRight(v.GetString("CARDMARKET_BASE_URL"), "/"),
			AppToken:     v.GetString("CARDMARKET_APP_TOKEN"),
			AppSecret:    v.GetString("CARDMARKET_APP_SECRET"),
			AccessToken:  v.GetString("CARDMARKET_ACCESS_TOKEN"),
			AccessSecret: v.GetString("CARDMARKET_ACCESS_SECRET"),
			Timeout:      seconds(v, "CARDMARKET_TIMEOUT"),
			DailyLimit:   v.GetInt("CARDMARKET_DAILY_LIMIT"),
			RequestDelay: v.GetDuration("CARDMARKET_REQUEST_DELAY"),
			PriceTTL:     seconds(v, "MTG_CACHE_PRICES"),
		},
		MySQLDSN: v.GetString("MYSQL_DSN"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// JWTKey returns the JWT signing key as a byte slice.
func (c *Config) JWTKey() []byte {
	return []byte(c.JWTSecret)
}

// CardmarketConfigured reports whether marketplace app credentials are present.
func (c *Config) CardmarketConfigured() bool {
	return c.Cardmarket.AppToken != "" && c.Cardmarket.AppSecret != ""
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" && c.DBPass == "" {
			return errors.New("config: DATABASE_URL or DB_PASS must be set")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH must be set when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Import.BatchSize <= 0 {
		return errors.New("config: MTG_IMPORT_BATCH_SIZE must be positive")
	}
	if c.Import.JobTimeout < 0 {
		return errors.New("config: MTG_IMPORT_JOB_TIMEOUT must not be negative")
	}
	if c.Import.Workers <= 0 {
		c.Import.Workers = 1
	}
	if c.Cardmarket.DailyLimit <= 0 {
		return errors.New("config: CARDMARKET_DAILY_LIMIT must be positive")
	}
	return nil
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

// seconds accepts either a Go duration ("300s", "5m") or a bare number of seconds,
// the format the legacy PHP deployment used for its timeouts and TTLs.
func seconds(v *viper.Viper, key string) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw != "" && strings.Trim(raw, "0123456789") == "" {
		return time.Duration(v.GetInt64(key)) * time.Second
	}
	return v.GetDuration(key)
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
