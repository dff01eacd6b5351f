package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the engine reads from the environment.
type Config struct {
	HTTPAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	MigrationsDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// LeaderboardSize is the public top-K cut of the ranking.
	LeaderboardSize int
}

// Load reads .env if present and builds the config with defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        getEnvOrDefault("HTTP_ADDR", ":9000"),
		DBHost:          getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:          getEnvOrDefault("DB_PORT", "5432"),
		DBUser:          getEnvOrDefault("DB_USER", "postgres"),
		DBPassword:      getEnvOrDefault("DB_PASSWORD", "postgres"),
		DBName:          getEnvOrDefault("DB_NAME", "pledgeboard"),
		DBSSLMode:       getEnvOrDefault("DB_SSLMODE", "disable"),
		MigrationsDir:   getEnvOrDefault("MIGRATIONS_DIR", "internal/shared/db/migrations/sql"),
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		LeaderboardSize: 10,
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.RedisDB = n
		}
	}
	if size := os.Getenv("LEADERBOARD_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.LeaderboardSize = n
		}
	}

	return cfg
}

// PostgresDSN assembles the pgx connection string from the DB_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
