package db

import (
	"fmt"

	"github.com/feralbyte/killwatch/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

var gormConfig = &gorm.Config{
	Logger: logger.Default.LogMode(logger.Silent),
}

// Open returns a *gorm.DB for the configured database mode: sqlite for
// single-host deployments and tests, mysql with a connection pool for
// hosted ones.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)

	case ModeMySQL:
		gdb, err := gorm.Open(mysql.Open(cfg.MySQLDSN), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MySQLMaxOpen)
		sqlDB.SetMaxIdleConns(cfg.MySQLMaxIdle)
		sqlDB.SetConnMaxLifetime(cfg.MySQLMaxLife)
		return gdb, nil

	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
