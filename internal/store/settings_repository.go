package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guest-stay-portal/backend/internal/stay"
	"github.com/guest-stay-portal/backend/internal/store/models"
)

// SettingsRepository provides data access for property-wide settings.
type SettingsRepository struct {
	BaseRepository
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Get loads the property settings, applying defaults for missing keys.
func (r *SettingsRepository) Get(ctx context.Context) (*models.PropertySettings, error) {
	rows, err := r.DB().QueryContext(ctx, "SELECT key, value FROM property_settings")
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	settings := &models.PropertySettings{
		CheckInTime:  stay.DefaultCheckInTime,
		CheckOutTime: stay.DefaultCheckOutTime,
	}

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		switch key {
		case models.SettingCheckInTime:
			settings.CheckInTime = value
		case models.SettingCheckOutTime:
			settings.CheckOutTime = value
		case models.SettingSafeCodeOverride:
			settings.SafeCodeOverride = value
		case models.SettingWelcomeMessage:
			settings.WelcomeMessage = value
		}
	}

	return settings, rows.Err()
}

// Update writes the property settings. All keys land in one transaction; a
// half-written set would skew snapshot defaults for live sessions.
func (r *SettingsRepository) Update(ctx context.Context, settings *models.PropertySettings) error {
	pairs := map[string]string{
		models.SettingCheckInTime:      settings.CheckInTime,
		models.SettingCheckOutTime:     settings.CheckOutTime,
		models.SettingSafeCodeOverride: settings.SafeCodeOverride,
		models.SettingWelcomeMessage:   settings.WelcomeMessage,
	}

	return r.DB().Transaction(func(tx *sql.Tx) error {
		for key, value := range pairs {
			if err := upsertSetting(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertSetting(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO property_settings (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')
	`, key, value, value)

	if err != nil {
		return fmt.Errorf("updating setting %s: %w", key, err)
	}

	return nil
}
