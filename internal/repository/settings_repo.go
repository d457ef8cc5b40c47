package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"krosswordle/internal/database"
)

const (
	settingMonthlyPrize    = "monthly_prize"
	settingWinnersNotified = "winners_notified_"
	settingWinnerEmailed   = "winner_emailed_"
)

type SettingsRepository struct {
	db database.DBTX
}

func NewSettingsRepository(db database.DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting retrieves a setting value by name; missing settings read as ""
func (r *SettingsRepository) GetSetting(ctx context.Context, name string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", name, err)
	}
	return value, nil
}

// SetSetting updates or inserts a setting
func (r *SettingsRepository) SetSetting(ctx context.Context, name, value string) error {
	if _, err := r.db.ExecContext(ctx, r.db.GetDialect().UpsertSettingQuery(), name, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", name, err)
	}
	return nil
}

// MonthlyPrize returns the prize text shown with the winners
func (r *SettingsRepository) MonthlyPrize(ctx context.Context) (string, error) {
	return r.GetSetting(ctx, settingMonthlyPrize)
}

// SetMonthlyPrize changes the prize text
func (r *SettingsRepository) SetMonthlyPrize(ctx context.Context, prize string) error {
	return r.SetSetting(ctx, settingMonthlyPrize, prize)
}

// ClaimWinnersNotification marks the month's winners as notified. It returns false when
// another caller already claimed it, so the email goes out once per month.
func (r *SettingsRepository) ClaimWinnersNotification(ctx context.Context, month string) (bool, error) {
	query := r.db.GetDialect().InsertIgnoreQuery("settings", []string{"name", "value"})
	result, err := r.db.ExecContext(ctx, query, settingWinnersNotified+month, "true")
	if err != nil {
		return false, fmt.Errorf("failed to claim winners notification: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ReleaseWinnersNotification undoes a claim after a failed send
func (r *SettingsRepository) ReleaseWinnersNotification(ctx context.Context, month string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE name = ?", settingWinnersNotified+month); err != nil {
		return fmt.Errorf("failed to release winners notification: %w", err)
	}
	return nil
}

// WinnerEmailed reports whether recipient already received the month's winners email.
// Recipients are user IDs, or "admin" for the summary.
func (r *SettingsRepository) WinnerEmailed(ctx context.Context, month, recipient string) (bool, error) {
	v, err := r.GetSetting(ctx, winnerEmailedKey(month, recipient))
	if err != nil {
		return false, err
	}
	return v != "", nil
}

// MarkWinnerEmailed records a delivered winners email. Unlike the month claim it survives
// a failed run, so a retry skips whoever was already told.
func (r *SettingsRepository) MarkWinnerEmailed(ctx context.Context, month, recipient string) error {
	return r.SetSetting(ctx, winnerEmailedKey(month, recipient), "true")
}

func winnerEmailedKey(month, recipient string) string {
	return settingWinnerEmailed + month + "_" + recipient
}

// AllSettings returns every setting, for backups
func (r *SettingsRepository) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, value FROM settings ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}
