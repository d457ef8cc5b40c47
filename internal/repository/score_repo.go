package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"krosswordle/internal/database"
	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
)

const scoreColumns = "id, user_id, level_id, play_date, completion_seconds, points, created_at"

// ScoreRepository stores completed attempts
type ScoreRepository struct {
	db database.DBTX
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db database.DBTX) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// InsertScore records a completion unless the user already has one for the date.
// It reports whether the score was written.
func (r *ScoreRepository) InsertScore(ctx context.Context, s *models.Score) (bool, error) {
	query := r.db.GetDialect().InsertIgnoreQuery("scores", []string{
		"user_id", "level_id", "play_date", "completion_seconds", "points", "created_at",
	})
	result, err := r.db.ExecContext(ctx, query, s.UserID, s.LevelID, s.PlayDate, s.CompletionSeconds, s.Points, s.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert score: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func scanScore(row interface{ Scan(...interface{}) error }) (*models.Score, error) {
	var s models.Score
	err := row.Scan(&s.ID, &s.UserID, &s.LevelID, &s.PlayDate, &s.CompletionSeconds, &s.Points, &s.CreatedAt)
	return &s, err
}

// GetScore returns the user's score for playDate, or nil when there is none
func (r *ScoreRepository) GetScore(ctx context.Context, userID int64, playDate string) (*models.Score, error) {
	s, err := scanScore(r.db.QueryRowContext(ctx,
		"SELECT "+scoreColumns+" FROM scores WHERE user_id = ? AND play_date = ?", userID, playDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return s, nil
}

// ScoreRows returns every completion between from and to inclusive with the player's
// public profile, ready for ranking
func (r *ScoreRepository) ScoreRows(ctx context.Context, from, to string) ([]puzzle.ScoreRow, error) {
	query := `
		SELECT s.user_id, u.display_name, u.avatar_url, s.completion_seconds, s.points, s.created_at
		FROM scores s
		JOIN users u ON u.id = s.user_id
		WHERE s.play_date >= ? AND s.play_date <= ?
		ORDER BY s.created_at, s.id
	`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var out []puzzle.ScoreRow
	for rows.Next() {
		var row puzzle.ScoreRow
		if err := rows.Scan(&row.UserID, &row.DisplayName, &row.AvatarURL, &row.CompletionSeconds, &row.Points, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListScores returns every stored score, oldest first
func (r *ScoreRepository) ListScores(ctx context.Context) ([]models.Score, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+scoreColumns+" FROM scores ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var out []models.Score
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
