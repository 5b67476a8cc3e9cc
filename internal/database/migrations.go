package database

import (
	"propeval/server/internal/models"
)

func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(
		&models.Property{},
		&models.APISettings{},
		&models.NotifierConfig{},
	); err != nil {
		return err
	}

	// Index for listing properties by recency
	return d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_created_at
		ON properties(created_at);
	`).Error
}
