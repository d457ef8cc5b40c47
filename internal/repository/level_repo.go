package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"krosswordle/internal/database"
	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
)

// LevelRepository stores one puzzle per play date
type LevelRepository struct {
	db database.DBTX
}

// NewLevelRepository creates a new level repository
func NewLevelRepository(db database.DBTX) *LevelRepository {
	return &LevelRepository{db: db}
}

// SaveLevel inserts the level for its date, or replaces the words of the existing one.
// The level ID stays stable across replacements.
func (r *LevelRepository) SaveLevel(ctx context.Context, playDate string, words []puzzle.WordPlacement) (*models.Level, error) {
	data, err := json.Marshal(words)
	if err != nil {
		return nil, fmt.Errorf("failed to encode words: %w", err)
	}

	existing, err := r.GetLevelByDate(ctx, playDate)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing != nil {
		if _, err := r.db.ExecContext(ctx,
			"UPDATE levels SET words_json = ?, updated_at = ? WHERE id = ?", string(data), now, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to update level: %w", err)
		}
		existing.Words = words
		existing.UpdatedAt = now
		return existing, nil
	}

	id, err := r.db.ExecReturningID(ctx,
		"INSERT INTO levels (play_date, words_json, created_at, updated_at) VALUES (?, ?, ?, ?)",
		playDate, string(data), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create level: %w", err)
	}
	return &models.Level{ID: id, PlayDate: playDate, Words: words, CreatedAt: now, UpdatedAt: now}, nil
}

func scanLevel(row interface{ Scan(...interface{}) error }) (*models.Level, error) {
	var (
		level models.Level
		data  string
	)
	if err := row.Scan(&level.ID, &level.PlayDate, &data, &level.CreatedAt, &level.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &level.Words); err != nil {
		return nil, fmt.Errorf("failed to decode words of level %d: %w", level.ID, err)
	}
	return &level, nil
}

const levelColumns = "id, play_date, words_json, created_at, updated_at"

// GetLevelByDate returns the level for playDate, or nil when none exists
func (r *LevelRepository) GetLevelByDate(ctx context.Context, playDate string) (*models.Level, error) {
	level, err := scanLevel(r.db.QueryRowContext(ctx, "SELECT "+levelColumns+" FROM levels WHERE play_date = ?", playDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get level: %w", err)
	}
	return level, nil
}

// GetLevelByID returns a level by ID, or nil when none exists
func (r *LevelRepository) GetLevelByID(ctx context.Context, id int64) (*models.Level, error) {
	level, err := scanLevel(r.db.QueryRowContext(ctx, "SELECT "+levelColumns+" FROM levels WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get level: %w", err)
	}
	return level, nil
}

// ListLevels returns levels between from and to inclusive, ordered by date.
// Empty bounds are open.
func (r *LevelRepository) ListLevels(ctx context.Context, from, to string) ([]models.Level, error) {
	query := "SELECT " + levelColumns + " FROM levels WHERE 1 = 1"
	var args []interface{}
	if from != "" {
		query += " AND play_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND play_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY play_date"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer rows.Close()

	var levels []models.Level
	for rows.Next() {
		level, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, *level)
	}
	return levels, rows.Err()
}

// CountAttempts returns how many game sessions reference the level
func (r *LevelRepository) CountAttempts(ctx context.Context, levelID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM game_sessions WHERE level_id = ?", levelID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// DeleteLevel removes the level for playDate and reports whether one existed
func (r *LevelRepository) DeleteLevel(ctx context.Context, playDate string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM levels WHERE play_date = ?", playDate)
	if err != nil {
		return false, fmt.Errorf("failed to delete level: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
