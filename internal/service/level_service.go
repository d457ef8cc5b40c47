package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
	"krosswordle/internal/repository"
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrLevelInUse    = errors.New("level has already been played")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
)

// LevelFile is the YAML document admins author levels in
type LevelFile struct {
	Levels []LevelDraft `yaml:"levels"`
}

// LevelDraft is one level of a LevelFile
type LevelDraft struct {
	Date  string                 `yaml:"date"`
	Words []puzzle.WordPlacement `yaml:"words"`
}

// ParseLevelFile reads a YAML level file, normalizes every level and validates it.
// Validation errors name the offending date.
func ParseLevelFile(r io.Reader) ([]puzzle.Level, error) {
	var file LevelFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse level file: %w", err)
	}

	seen := make(map[string]bool, len(file.Levels))
	levels := make([]puzzle.Level, 0, len(file.Levels))
	for i, draft := range file.Levels {
		if _, err := puzzle.ParseDate(draft.Date); err != nil {
			return nil, fmt.Errorf("level %d: %w", i+1, ErrInvalidDate)
		}
		if seen[draft.Date] {
			return nil, fmt.Errorf("level %s: duplicate date", draft.Date)
		}
		seen[draft.Date] = true

		level := puzzle.Level{Date: draft.Date, Words: draft.Words}
		puzzle.NormalizeLevel(&level)
		if err := puzzle.ValidateLevel(&level); err != nil {
			return nil, fmt.Errorf("level %s: %w", draft.Date, err)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// LevelService manages the daily puzzles
type LevelService struct {
	levelRepo *repository.LevelRepository
}

// NewLevelService creates a new level service
func NewLevelService(levelRepo *repository.LevelRepository) *LevelService {
	return &LevelService{levelRepo: levelRepo}
}

// GetLevel returns the level for date, or nil when there is none
func (s *LevelService) GetLevel(ctx context.Context, date string) (*models.Level, error) {
	if _, err := puzzle.ParseDate(date); err != nil {
		return nil, ErrInvalidDate
	}
	return s.levelRepo.GetLevelByDate(ctx, date)
}

// SaveLevel creates or replaces the level for date. A level somebody has started cannot
// be replaced, since their stored grid was built from it.
func (s *LevelService) SaveLevel(ctx context.Context, date string, words []puzzle.WordPlacement) (*models.Level, error) {
	if _, err := puzzle.ParseDate(date); err != nil {
		return nil, ErrInvalidDate
	}

	level := puzzle.Level{Date: date, Words: append([]puzzle.WordPlacement(nil), words...)}
	puzzle.NormalizeLevel(&level)
	if err := puzzle.ValidateLevel(&level); err != nil {
		return nil, err
	}

	existing, err := s.levelRepo.GetLevelByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		attempts, err := s.levelRepo.CountAttempts(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		if attempts > 0 {
			return nil, ErrLevelInUse
		}
	}

	saved, err := s.levelRepo.SaveLevel(ctx, date, level.Words)
	if err != nil {
		return nil, err
	}
	log.Info().Str("play_date", date).Int64("level_id", saved.ID).Int("words", len(saved.Words)).Msg("level saved")
	return saved, nil
}

// ListLevels returns levels between from and to inclusive; empty bounds are open
func (s *LevelService) ListLevels(ctx context.Context, from, to string) ([]models.Level, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := puzzle.ParseDate(d); err != nil {
			return nil, ErrInvalidDate
		}
	}
	return s.levelRepo.ListLevels(ctx, from, to)
}

// DeleteLevel removes an unplayed level
func (s *LevelService) DeleteLevel(ctx context.Context, date string) error {
	existing, err := s.GetLevel(ctx, date)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrLevelNotFound
	}
	attempts, err := s.levelRepo.CountAttempts(ctx, existing.ID)
	if err != nil {
		return err
	}
	if attempts > 0 {
		return ErrLevelInUse
	}
	if _, err := s.levelRepo.DeleteLevel(ctx, date); err != nil {
		return err
	}
	log.Info().Str("play_date", date).Msg("level deleted")
	return nil
}

// ImportLevels saves every level of a YAML level file. The file is validated as a whole
// before anything is written.
func (s *LevelService) ImportLevels(ctx context.Context, r io.Reader) (int, error) {
	levels, err := ParseLevelFile(r)
	if err != nil {
		return 0, err
	}
	for i, level := range levels {
		if _, err := s.SaveLevel(ctx, level.Date, level.Words); err != nil {
			return i, fmt.Errorf("level %s: %w", level.Date, err)
		}
	}
	return len(levels), nil
}
