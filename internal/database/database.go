package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/resqnet/backend/internal/config"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrUnknownDriver = errors.New("unknown database driver")

// Open connects without migrating. Callers own the returned handle and must
// Close it.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	switch cfg.Driver {
	case "", "postgres":
		return gorm.Open(postgres.Open(cfg.PostgresDSN()), gormCfg)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Connect opens the database, migrates the schema and seeds the first admin.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.DB)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		_ = Close(db)
		return nil, err
	}

	if _, err := SeedAdmin(db, cfg.Admin); err != nil {
		_ = Close(db)
		return nil, err
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.VolunteerProfile{},
		&models.Report{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	constraints := `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'users_role_check') THEN
    ALTER TABLE users
    ADD CONSTRAINT users_role_check
    CHECK (role IN ('user', 'volunteer', 'admin'));
  END IF;

  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'reports_status_check') THEN
    ALTER TABLE reports
    ADD CONSTRAINT reports_status_check
    CHECK (status IN ('pending', 'assigned', 'resolved'));
  END IF;

  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'users_location_range_check') THEN
    ALTER TABLE users
    ADD CONSTRAINT users_location_range_check
    CHECK (location_longitude BETWEEN -180 AND 180 AND location_latitude BETWEEN -90 AND 90);
  END IF;

  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'reports_assignment_check') THEN
    ALTER TABLE reports
    ADD CONSTRAINT reports_assignment_check
    CHECK (status <> 'assigned' OR assigned_volunteer_id IS NOT NULL);
  END IF;
END $$;`

	return db.Exec(constraints).Error
}

// SeedAdmin creates the configured admin when no admin exists yet. It
// reports whether a row was created.
func SeedAdmin(db *gorm.DB, cfg config.AdminConfig) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || cfg.Password == "" {
		return false, nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return false, err
	}

	name := cfg.Name
	if name == "" {
		name = "ResQNet Admin"
	}

	admin := models.User{
		Name:         name,
		Email:        email,
		Phone:        "",
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
