package database

import (
	"context"
	"fmt"
	"net/url"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flare-foundation/checkpoint-indexer/pkg/config"
)

const transactionBatchSize = 1000

var (
	// ErrContinuityViolation is returned when a checkpoint or block is
	// inserted before its predecessor.
	ErrContinuityViolation = errors.New("continuity violation")
)

type DB struct {
	g *gorm.DB
}

func New(cfg *config.DB) (*DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("connected to the DB")

	if err := db.AutoMigrate(entities...); err != nil {
		return nil, errors.Wrap(err, "migrating DB entities")
	}

	logger.Debug("migrated DB entities")

	return &DB{g: db}, nil
}

func Connect(cfg *config.DB) (*gorm.DB, error) {
	gormCfg := gorm.Config{
		Logger:          gormlogger.Default.LogMode(getGormLogLevel(cfg)),
		CreateBatchSize: transactionBatchSize,
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		return gorm.Open(postgres.Open(formatDSN(cfg)), &gormCfg)

	case config.DriverSQLite:
		db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg)), &gormCfg)
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		// SQLite allows a single writer; serialize everything through one
		// connection instead of surfacing "database is locked" errors.
		sqlDB.SetMaxOpenConns(1)

		return db, nil

	default:
		return nil, errors.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func (db *DB) Close() error {
	sqlDB, err := db.g.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.g.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

func getGormLogLevel(cfg *config.DB) gormlogger.LogLevel {
	if cfg.LogQueries {
		return gormlogger.Info
	}

	return gormlogger.Silent
}

func formatDSN(cfg *config.DB) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.DBName,
	}

	return u.String()
}

func sqliteDSN(cfg *config.DB) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	if cfg.DBName != "" {
		return cfg.DBName + "?_pragma=busy_timeout(5000)"
	}

	return "file::memory:?cache=shared"
}

func (db *DB) SaveVersion(ctx context.Context, version *Version) error {
	return db.g.WithContext(ctx).Save(version).Error
}

func (db *DB) GetVersion(ctx context.Context) (*Version, error) {
	version := new(Version)

	err := db.g.WithContext(ctx).First(version, globalVersionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return version, nil
}
