// Package model implements the read-only registry store: service
// descriptors, model limits, and local-auth credential rows.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexusgate/nexusgate/common"
	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/logger"
)

// DB is the process-wide registry store handle.
var DB *gorm.DB

func chooseDB(dsn string) (*gorm.DB, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"):
		return openPostgreSQL(dsn)
	case dsn != "":
		return openMySQL(dsn)
	default:
		return openSQLite()
	}
}

func openPostgreSQL(dsn string) (*gorm.DB, error) {
	logger.Logger.Info("using PostgreSQL as registry store")
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{PrepareStmt: true})
}

func openMySQL(dsn string) (*gorm.DB, error) {
	logger.Logger.Info("using MySQL as registry store")
	normalized, err := common.NormalizeMySQLDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "normalize MySQL DSN")
	}
	return gorm.Open(mysql.Open(normalized), &gorm.Config{PrepareStmt: true})
}

func openSQLite() (*gorm.DB, error) {
	logger.Logger.Info("SQL_DSN not set, using SQLite as registry store")
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", config.SQLitePath, config.SQLiteBusyTimeoutMS)
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{PrepareStmt: true})
}

// InitDB opens the registry store and migrates its schema. The CRUD tables
// that own writes to these rows (services/limits/credentials admin UI) are
// external collaborators; this gateway only ever reads them, but AutoMigrate
// still needs to know their shape to serve local development out of the box.
func InitDB() {
	var err error
	DB, err = chooseDB(config.SQLDSN)
	if err != nil {
		logger.Logger.Fatal("failed to initialize registry store", zap.Error(err))
		return
	}

	if config.DebugSQLEnabled {
		DB = DB.Debug()
	}

	sqlDB, err := DB.DB()
	if err != nil {
		logger.Logger.Fatal("failed to access underlying sql.DB", zap.Error(err))
		return
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err = migrateDB(); err != nil {
		logger.Logger.Fatal("failed to migrate registry store", zap.Error(err))
		return
	}
	logger.Logger.Info("registry store schema migrated")
}

func migrateDB() error {
	if err := DB.AutoMigrate(&Service{}); err != nil {
		return errors.Wrapf(err, "failed to migrate Service")
	}
	if err := DB.AutoMigrate(&ModelLimits{}); err != nil {
		return errors.Wrapf(err, "failed to migrate ModelLimits")
	}
	if err := DB.AutoMigrate(&UserKey{}); err != nil {
		return errors.Wrapf(err, "failed to migrate UserKey")
	}
	if err := DB.AutoMigrate(&UserKeyModel{}); err != nil {
		return errors.Wrapf(err, "failed to migrate UserKeyModel")
	}
	return nil
}
