package db

import (
	"fmt"
	"time"

	"github.com/stridehq/stride/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Plan{},
		&models.Week{},
		&models.Day{},
		&models.Activity{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// archiveGraceDays is how long after the race date an active plan stays
// unarchived.
const archiveGraceDays = 14

// ArchiveExpiredPlans marks ACTIVE plans whose race date passed more than
// archiveGraceDays ago as ARCHIVED. Returns the number of plans archived.
func ArchiveExpiredPlans(db *gorm.DB, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -archiveGraceDays)
	result := db.Model(&models.Plan{}).
		Where("status = ? AND race_date < ?", models.PlanActive, cutoff).
		Update("status", models.PlanArchived)
	if result.Error != nil {
		return 0, fmt.Errorf("db: archive expired plans: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
