package migrations

import (
	"pledgeboard/internal/shared/config"
	"pledgeboard/internal/shared/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

func RunMigrations(cfg *config.Config) error {
	log.Info("RunMigrations",
		zap.String("migrationsDir", cfg.MigrationsDir))
	m, err := migrate.New(
		"file://"+cfg.MigrationsDir,
		cfg.PostgresDSN(),
	)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
