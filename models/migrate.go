package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Card{},
		&PlayerCard{},
		&Player{},
		&FightSession{},
		&CooldownRecord{},
		&CooldownPolicy{},
		&FightRecord{},
	); err != nil {
		return err
	}

	// One open session per challenger, enforced by the store so concurrent
	// CreateChallenge calls cannot both persist.
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_fight_sessions_open_challenger ON fight_sessions (challenger_id) WHERE status NOT IN ('%s', '%s')",
		StatusCompleted, StatusCancelled,
	)
	return db.Exec(stmt).Error
}
