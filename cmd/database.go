package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// sqlDriver maps the configured driver to the database/sql driver name.
func sqlDriver(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "pgx"
}

// openDatabase opens one pool and shares it between sqlx and GORM.
func openDatabase(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	driver := sqlDriver(cfg.Driver)

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// one writer; the pragma is per connection
		dbConn.SetMaxOpenConns(1)
		if _, err := dbConn.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = dbConn.Close()
			return nil, nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
		dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
		dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	var dialector gorm.Dialector
	if cfg.Driver == "sqlite" {
		dialector = &sqlite.Dialector{DriverName: "sqlite", Conn: dbConn.DB}
	} else {
		dialector = postgres.New(postgres.Config{Conn: dbConn.DB})
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return dbConn, gdb, nil
}

// autoMigrate creates the schema from the models. Used for sqlite where the
// goose migrations, written for postgres, do not apply.
func autoMigrate(ctx context.Context, gdb *gorm.DB, logger *slog.Logger) error {
	if err := gdb.WithContext(ctx).AutoMigrate(datamodel.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("schema migrated", "mode", "automigrate")
	return nil
}
