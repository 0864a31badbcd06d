package config

import (
	"fmt"

	"github.com/cartela-live/backend/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SetupDatabase connects to postgres and runs migrations.
func SetupDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate keeps the schema in sync with the document models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.Card{},
		&models.Transaction{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
