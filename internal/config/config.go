package config // package config loads application configuration from environment variables

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Version is reported by /api/info/.  Release builds override it with
// -ldflags "-X github.com/openwifi/scan-server/internal/config.Version=...".
var Version = "0.4.0"

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds the core runtime configuration.  Each field corresponds to an
// environment variable; per-concern settings live in their own Load*Config.
type Config struct {
	Env        string // application environment (e.g. "dev", "prod")
	Port       string // HTTP port to listen on
	DBDriver   string // "mysql" (default) or "sqlite"
	DBUser     string
	DBPass     string // may be empty
	DBHost     string
	DBPort     string
	DBName     string
	SQLitePath string // database file when DBDriver is sqlite
	TestMode   bool   // drop and recreate the dataset at startup
	LogLevel   string
	LogPretty  bool
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and missing values terminate the process.
func Load() Config {
	cfg := Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      envStr("APP_PORT", "8080"),
		DBDriver:  strings.ToLower(envStr("DB_DRIVER", DriverMySQL)),
		TestMode:  envBool("APP_TEST_MODE", false),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogPretty: envBool("LOG_PRETTY", false),
	}
	switch cfg.DBDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = envStr("DB_HOST", "127.0.0.1")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = envStr("DB_NAME", "openwifi")
	case DriverSQLite:
		cfg.SQLitePath = envStr("SQLITE_PATH", "data/openwifi.db")
	default:
		log.Fatal().Str("driver", cfg.DBDriver).Msg("unsupported DB_DRIVER")
	}
	if cfg.TestMode && !strings.Contains(cfg.DatasetName(), "test") {
		log.Fatal().Str("dataset", cfg.DatasetName()).Msg(`database name must contain "test" in test mode`)
	}
	return cfg
}

// DatasetName identifies the database regardless of driver.
func (c Config) DatasetName() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	return c.DBName
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}
