package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	DBPath          string
	LogLevel        string
	SiteConfigPath  string
	GamesConfigPath string
	ExportDir       string

	// TTLHoursOverride replaces the site descriptor's retention TTL when > 0.
	TTLHoursOverride int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:          getEnv("DB_PATH", "scorepad.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SiteConfigPath:  getEnv("SITE_CONFIG", "config/site.yaml"),
		GamesConfigPath: getEnv("GAMES_CONFIG", "config/games.yaml"),
		ExportDir:       getEnv("EXPORT_DIR", "."),
	}

	if raw := getEnv("TTL_HOURS", ""); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("TTL_HOURS must be a positive whole number of hours, got %q", raw)
		}
		cfg.TTLHoursOverride = hours
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	logger.Debug().
		Str("db_path", cfg.DBPath).
		Str("log_level", cfg.LogLevel).
		Str("site_config", cfg.SiteConfigPath).
		Str("games_config", cfg.GamesConfigPath).
		Str("export_dir", cfg.ExportDir).
		Int("ttl_hours_override", cfg.TTLHoursOverride).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
