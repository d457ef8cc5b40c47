package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"krosswordle/internal/database"
	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
	"krosswordle/internal/repository"
)

const backupVersion = "1.0"

// BackupData represents the complete database backup structure. Auth sessions are not
// included; everyone signs in again after a restore.
type BackupData struct {
	Version      string               `json:"version"`
	ExportedAt   time.Time            `json:"exported_at"`
	DatabaseType string               `json:"database_type"`
	Users        []models.User        `json:"users"`
	Levels       []models.Level       `json:"levels"`
	GameSessions []models.GameSession `json:"game_sessions"`
	Scores       []models.Score       `json:"scores"`
	Settings     map[string]string    `json:"settings"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db *database.DB
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{db: db}
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	log.Info().Str("path", outputPath).Msg("database exported")
	return nil
}

// ExportToWriter writes the backup as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup, err := s.collect(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	log.Info().
		Int("users", len(backup.Users)).
		Int("levels", len(backup.Levels)).
		Int("game_sessions", len(backup.GameSessions)).
		Int("scores", len(backup.Scores)).
		Msg("backup written")
	return nil
}

func (s *BackupService) collect(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: "universal",
	}

	var err error
	if backup.Users, err = repository.NewUserRepository(s.db).GetAllUsers(ctx); err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	// oldest first so IDs restore in creation order
	sort.Slice(backup.Users, func(i, j int) bool { return backup.Users[i].ID < backup.Users[j].ID })

	if backup.Levels, err = repository.NewLevelRepository(s.db).ListLevels(ctx, "", ""); err != nil {
		return nil, fmt.Errorf("failed to export levels: %w", err)
	}
	if backup.GameSessions, err = repository.NewGameSessionRepository(s.db).ListSessions(ctx); err != nil {
		return nil, fmt.Errorf("failed to export game sessions: %w", err)
	}
	if backup.Scores, err = repository.NewScoreRepository(s.db).ListScores(ctx); err != nil {
		return nil, fmt.Errorf("failed to export scores: %w", err)
	}
	if backup.Settings, err = repository.NewSettingsRepository(s.db).AllSettings(ctx); err != nil {
		return nil, fmt.Errorf("failed to export settings: %w", err)
	}
	return backup, nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup into an empty database in one transaction
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	log.Info().Str("version", backup.Version).Time("exported_at", backup.ExportedAt).Msg("importing backup")

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		// Import in order of dependencies
		if err := importUsers(ctx, tx, backup.Users); err != nil {
			return fmt.Errorf("failed to import users: %w", err)
		}
		if err := importLevels(ctx, tx, backup.Levels); err != nil {
			return fmt.Errorf("failed to import levels: %w", err)
		}
		if err := importGameSessions(ctx, tx, backup.GameSessions); err != nil {
			return fmt.Errorf("failed to import game sessions: %w", err)
		}
		if err := importScores(ctx, tx, backup.Scores); err != nil {
			return fmt.Errorf("failed to import scores: %w", err)
		}
		settings := repository.NewSettingsRepository(tx)
		for name, value := range backup.Settings {
			if err := settings.SetSetting(ctx, name, value); err != nil {
				return err
			}
		}
		for _, table := range []string{"users", "levels", "game_sessions", "scores"} {
			if q := tx.GetDialect().ResetSequenceQuery(table); q != "" {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					return fmt.Errorf("failed to reset %s sequence: %w", table, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Msg("database import completed")
	return nil
}

func importUsers(ctx context.Context, tx *database.Tx, users []models.User) error {
	for _, u := range users {
		query := "INSERT INTO users (id, email, password_hash, display_name, avatar_url, oauth_provider, oauth_subject, is_admin, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, u.ID, u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL,
			nullIfEmpty(u.OAuthProvider), nullIfEmpty(u.OAuthSubject), u.IsAdmin, u.CreatedAt.UTC(), u.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("user %d: %w", u.ID, err)
		}
	}
	return nil
}

func importLevels(ctx context.Context, tx *database.Tx, levels []models.Level) error {
	for _, l := range levels {
		data, err := json.Marshal(l.Words)
		if err != nil {
			return fmt.Errorf("level %d: %w", l.ID, err)
		}
		query := "INSERT INTO levels (id, play_date, words_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, l.ID, l.PlayDate, string(data), l.CreatedAt.UTC(), l.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("level %d: %w", l.ID, err)
		}
	}
	return nil
}

func importGameSessions(ctx context.Context, tx *database.Tx, sessions []models.GameSession) error {
	for _, gs := range sessions {
		gridJSON, err := puzzle.MarshalGrid(gs.Grid)
		if err != nil {
			return fmt.Errorf("game session %d: %w", gs.ID, err)
		}
		powersJSON, err := json.Marshal(gs.Powers)
		if err != nil {
			return fmt.Errorf("game session %d: %w", gs.ID, err)
		}
		var completedAt interface{}
		if gs.CompletedAt != nil {
			completedAt = gs.CompletedAt.UTC()
		}
		query := `INSERT INTO game_sessions
			(id, user_id, level_id, play_date, status, grid_json, powers_json, elapsed_seconds, started_at, updated_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, gs.ID, gs.UserID, gs.LevelID, gs.PlayDate, string(gs.Status), gridJSON,
			string(powersJSON), gs.ElapsedSeconds, gs.StartedAt.UTC(), gs.UpdatedAt.UTC(), completedAt); err != nil {
			return fmt.Errorf("game session %d: %w", gs.ID, err)
		}
	}
	return nil
}

func importScores(ctx context.Context, tx *database.Tx, scores []models.Score) error {
	for _, sc := range scores {
		query := "INSERT INTO scores (id, user_id, level_id, play_date, completion_seconds, points, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, sc.ID, sc.UserID, sc.LevelID, sc.PlayDate, sc.CompletionSeconds, sc.Points, sc.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("score %d: %w", sc.ID, err)
		}
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
