package database

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RunMigrations runs data fixes after schema changes.
// Safe to run repeatedly: every statement only touches rows that need it.
func RunMigrations(db *gorm.DB) error {
	if err := normalizeTrackingDefaults(db); err != nil {
		return err
	}
	if err := clampUserRatings(db); err != nil {
		return err
	}
	return nil
}

// normalizeTrackingDefaults fills status and list for rows imported before
// those columns had defaults, and canonicalizes status casing.
func normalizeTrackingDefaults(db *gorm.DB) error {
	if !db.Migrator().HasTable("games") {
		return nil
	}

	result := db.Exec(`UPDATE games SET status = 'Pending' WHERE status IS NULL OR status = ''`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("rows", result.RowsAffected).Msg("Defaulted empty game status to Pending")
	}

	result = db.Exec(`
		UPDATE games
		SET status = CASE LOWER(status)
			WHEN 'pending' THEN 'Pending'
			WHEN 'playing' THEN 'Playing'
			WHEN 'completed' THEN 'Completed'
			WHEN 'wishlist' THEN 'Wishlist'
			ELSE 'Pending'
		END
		WHERE status NOT IN ('Pending', 'Playing', 'Completed', 'Wishlist')
	`)
	if result.Error != nil {
		log.Warn().Err(result.Error).Msg("Failed to canonicalize game status values")
	}

	if db.Migrator().HasColumn("games", "list") {
		result = db.Exec(`UPDATE games SET list = 'None' WHERE list IS NULL OR list = ''`)
		if result.Error != nil {
			log.Warn().Err(result.Error).Msg("Failed to backfill empty game lists")
		} else if result.RowsAffected > 0 {
			log.Info().Int64("rows", result.RowsAffected).Msg("Defaulted empty game list to None")
		}
	}

	return nil
}

// clampUserRatings keeps personal ratings inside the 0-5 star scale
func clampUserRatings(db *gorm.DB) error {
	if !db.Migrator().HasColumn("games", "user_rating") {
		return nil
	}

	result := db.Exec(`
		UPDATE games
		SET user_rating = CASE WHEN user_rating < 0 THEN 0 ELSE 5 END
		WHERE user_rating < 0 OR user_rating > 5
	`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("rows", result.RowsAffected).Msg("Clamped out-of-range user ratings")
	}
	return nil
}
