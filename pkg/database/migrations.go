package database

import (
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := createBusyGuardIndex(db)

	if err != nil {
		return err
	}

	return createHistoryIndex(db)
}

// createBusyGuardIndex installs the compare-and-swap busy guard: at most one
// in-progress generation may exist per (client, service name). Two concurrent
// creates that both pass the read-side check race on this index instead of
// both inserting.
func createBusyGuardIndex(db *gorm.DB) error {
	indexSQL := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_generations_busy
    ON generations (client_id, service_name)
    WHERE status = 'in_progress';
`

	return db.Exec(indexSQL).Error
}

func createHistoryIndex(db *gorm.DB) error {
	indexSQL := `
CREATE INDEX IF NOT EXISTS idx_generations_lineage
    ON generations (client_id, service_name, generation_number);
`

	return db.Exec(indexSQL).Error
}
