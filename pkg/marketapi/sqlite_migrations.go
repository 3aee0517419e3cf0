package marketapi

import (
	"database/sql"
	"errors"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DBMigrationsPath string
	DBPath           string
	ListenAddr       string
	LogLevel         string
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// ConfigFromEnv reads the FPMM_* environment variables, falling back to
// defaults suitable for running from the repository root.
func ConfigFromEnv() *Config {
	return &Config{
		DBMigrationsPath: getenv("FPMM_DB_MIGRATIONS_PATH", "file://db/migrations"),
		DBPath:           getenv("FPMM_DB_PATH", "fpmm.db"),
		ListenAddr:       getenv("FPMM_LISTEN_ADDR", ":8080"),
		LogLevel:         getenv("FPMM_LOG_LEVEL", "info"),
	}
}

func EnsureMigrations(cfg *Config) {
	sqliteDb, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		panic(err)
	}
	driver, err := sqlite3.WithInstance(sqliteDb, &sqlite3.Config{})
	if err != nil {
		panic(err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.DBMigrationsPath, cfg.DBPath, driver)
	if err != nil {
		panic(err)
	}
	log.Info().Str("path", cfg.DBMigrationsPath).Msg("bringing-up-migration")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		panic(err)
	}
	e1, e2 := m.Close()
	log.Err(e1).Msg("close-source")
	log.Err(e2).Msg("close-database")
}
