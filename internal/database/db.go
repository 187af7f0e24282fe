package database

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"certiread/internal/models"
)

// Config selects the backing relational store.
type Config struct {
	Driver string
	// Path is the SQLite database file; ignored by the other drivers.
	Path  string
	DSN   string
	Debug bool
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "access sql.DB")
		}
		// SQLite allows a single writer; serialize instead of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	log.Debug("Migrating database...")
	err := db.AutoMigrate(
		&models.Publisher{},
		&models.Domain{},
		&models.Author{},
		&models.Certificate{},
	)
	return errors.Wrap(err, "migrate database")
}
