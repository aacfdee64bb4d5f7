// Package database is the storage layer, a PostgreSQL document-flavoured
// store built on gorm. Raw entities are insert-only with unique keys;
// rejected duplicate inserts are expected and reported to callers as
// not-inserted rather than as errors. No cross-process locking exists beyond
// those unique constraints.
package database

import (
	"fmt"
	"net/url"

	"github.com/graphenedata/ledger-indexer/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const createBatchSize = 1000

type DB struct {
	g *gorm.DB
}

func New(cfg *config.DB) (*DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(entities...); err != nil {
		return nil, err
	}

	return &DB{g: db}, nil
}

func Connect(cfg *config.DB) (*gorm.DB, error) {
	dsn := formatDSN(cfg)

	gormCfg := gorm.Config{
		Logger:          gormlogger.Default.LogMode(getGormLogLevel(cfg)),
		CreateBatchSize: createBatchSize,
	}

	return gorm.Open(postgres.Open(dsn), &gormCfg)
}

func getGormLogLevel(cfg *config.DB) gormlogger.LogLevel {
	if cfg.LogQueries {
		return gormlogger.Info
	}

	return gormlogger.Silent
}

func formatDSN(cfg *config.DB) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.DBName,
	}

	return u.String()
}
