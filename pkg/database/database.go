package database

import (
	"fmt"

	"github.com/targc/servio/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dbURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{
		TranslateError: true,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Generation{},
		&models.ClientAPIKey{},
	)

	if err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	err = RunMigrations(db)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
