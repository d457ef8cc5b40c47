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

// ErrNoRowsChanged is returned when a conditional update matched nothing
var ErrNoRowsChanged = errors.New("no rows changed")

const gameSessionColumns = "id, user_id, level_id, play_date, status, grid_json, powers_json, elapsed_seconds, started_at, updated_at, completed_at"

// GameSessionRepository persists per-user, per-day attempts
type GameSessionRepository struct {
	db database.DBTX
}

// NewGameSessionRepository creates a new game session repository
func NewGameSessionRepository(db database.DBTX) *GameSessionRepository {
	return &GameSessionRepository{db: db}
}

// CreateSession inserts a playing attempt unless the user already has one for the date.
// It reports whether a row was written.
func (r *GameSessionRepository) CreateSession(ctx context.Context, s *models.GameSession) (bool, error) {
	gridJSON, err := puzzle.MarshalGrid(s.Grid)
	if err != nil {
		return false, err
	}
	powersJSON, err := json.Marshal(s.Powers)
	if err != nil {
		return false, fmt.Errorf("failed to encode powers: %w", err)
	}

	query := r.db.GetDialect().InsertIgnoreQuery("game_sessions", []string{
		"user_id", "level_id", "play_date", "status", "grid_json", "powers_json", "elapsed_seconds", "started_at", "updated_at",
	})
	result, err := r.db.ExecContext(ctx, query,
		s.UserID, s.LevelID, s.PlayDate, string(s.Status), gridJSON, string(powersJSON), s.ElapsedSeconds,
		s.StartedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to create game session: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func scanGameSession(row interface{ Scan(...interface{}) error }) (*models.GameSession, error) {
	var (
		s           models.GameSession
		status      string
		gridJSON    string
		powersJSON  string
		completedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.LevelID, &s.PlayDate, &status, &gridJSON, &powersJSON,
		&s.ElapsedSeconds, &s.StartedAt, &s.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	s.Status = puzzle.SessionStatus(status)

	grid, err := puzzle.UnmarshalGrid(gridJSON)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", s.ID, err)
	}
	s.Grid = grid
	if err := json.Unmarshal([]byte(powersJSON), &s.Powers); err != nil {
		return nil, fmt.Errorf("session %d: failed to decode powers: %w", s.ID, err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

// GetSession returns the user's attempt for playDate, or nil when there is none
func (r *GameSessionRepository) GetSession(ctx context.Context, userID int64, playDate string) (*models.GameSession, error) {
	s, err := scanGameSession(r.db.QueryRowContext(ctx,
		"SELECT "+gameSessionColumns+" FROM game_sessions WHERE user_id = ? AND play_date = ?", userID, playDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game session: %w", err)
	}
	return s, nil
}

// SaveProgress overwrites the stored grid, powers and clock of a playing attempt.
// Completed attempts are left untouched and ErrNoRowsChanged is returned.
func (r *GameSessionRepository) SaveProgress(ctx context.Context, id int64, grid puzzle.Grid, powers []puzzle.PowerState, elapsed int) error {
	gridJSON, err := puzzle.MarshalGrid(grid)
	if err != nil {
		return err
	}
	powersJSON, err := json.Marshal(powers)
	if err != nil {
		return fmt.Errorf("failed to encode powers: %w", err)
	}

	query := `
		UPDATE game_sessions
		SET grid_json = ?, powers_json = ?, elapsed_seconds = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`
	result, err := r.db.ExecContext(ctx, query, gridJSON, string(powersJSON), elapsed, time.Now().UTC(), id, string(puzzle.SessionCompleted))
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNoRowsChanged
	}
	return nil
}

// MarkCompleted finalizes a playing attempt with its final clock value
func (r *GameSessionRepository) MarkCompleted(ctx context.Context, id int64, elapsed int, at time.Time) error {
	query := `
		UPDATE game_sessions
		SET status = ?, elapsed_seconds = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`
	result, err := r.db.ExecContext(ctx, query, string(puzzle.SessionCompleted), elapsed, at.UTC(), at.UTC(), id, string(puzzle.SessionCompleted))
	if err != nil {
		return fmt.Errorf("failed to complete game session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNoRowsChanged
	}
	return nil
}

// ListSessions returns every stored attempt, oldest first
func (r *GameSessionRepository) ListSessions(ctx context.Context) ([]models.GameSession, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+gameSessionColumns+" FROM game_sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query game sessions: %w", err)
	}
	defer rows.Close()

	var out []models.GameSession
	for rows.Next() {
		s, err := scanGameSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
