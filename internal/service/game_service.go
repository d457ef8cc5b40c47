package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"krosswordle/internal/database"
	"krosswordle/internal/metrics"
	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
	"krosswordle/internal/repository"
)

var (
	ErrFrozen           = errors.New("play is closed on the last day of the month")
	ErrSessionCompleted = errors.New("session already completed")
	ErrNoSession        = errors.New("no session for this date")
	ErrPuzzleNotSolved  = errors.New("stored grid does not solve the level")
	ErrInvalidProgress  = errors.New("progress does not match the level")
	ErrLevelNotToday    = errors.New("level is not today's level")
)

// Clock settings shared by the gameplay services
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

func (c Clock) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// GameService is the server side of the daily attempt lifecycle: one session per user
// and day, progress saves while playing, and a single verified score on completion.
type GameService struct {
	db          *database.DB
	levelRepo   *repository.LevelRepository
	sessionRepo *repository.GameSessionRepository
	scoreRepo   *repository.ScoreRepository
	clock       Clock
	powerUses   int
	metrics     *metrics.Recorder
}

// NewGameService creates a new game service. powerUses is the starting count of each power-up.
func NewGameService(db *database.DB, clock Clock, powerUses int, rec *metrics.Recorder) *GameService {
	return &GameService{
		db:          db,
		levelRepo:   repository.NewLevelRepository(db),
		sessionRepo: repository.NewGameSessionRepository(db),
		scoreRepo:   repository.NewScoreRepository(db),
		clock:       clock,
		powerUses:   powerUses,
		metrics:     rec,
	}
}

// Today returns the current play date in the puzzle time zone
func (s *GameService) Today() string {
	return puzzle.DateKey(s.clock.now())
}

func (s *GameService) reject(err error, reason string) error {
	s.metrics.Rejected(reason)
	return err
}

// StartSession opens today's attempt for the user. Starting again while playing returns
// the existing attempt unchanged; a completed attempt cannot be restarted.
func (s *GameService) StartSession(ctx context.Context, userID, levelID int64, grid puzzle.Grid, powers []puzzle.PowerState) (*models.GameSession, error) {
	now := s.clock.now()
	if puzzle.IsFreezeWindow(now) {
		return nil, s.reject(ErrFrozen, "frozen")
	}
	date := puzzle.DateKey(now)

	level, err := s.levelRepo.GetLevelByID(ctx, levelID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}
	if level.PlayDate != date {
		return nil, s.reject(ErrLevelNotToday, "wrong_date")
	}

	fresh := puzzle.BuildEmptyGrid(level.Puzzle())
	if grid == nil {
		grid = fresh
	} else if !validGrid(grid, fresh) {
		return nil, s.reject(ErrInvalidProgress, "invalid_grid")
	}
	allowed := puzzle.DefaultPowers(s.powerUses)
	if powers == nil {
		powers = allowed
	} else if !powersWithin(powers, allowed) {
		return nil, s.reject(ErrInvalidProgress, "invalid_powers")
	}

	existing, err := s.sessionRepo.GetSession(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		session := &models.GameSession{
			UserID:    userID,
			LevelID:   level.ID,
			PlayDate:  date,
			Status:    puzzle.SessionPlaying,
			Grid:      grid.Persisted(),
			Powers:    puzzle.ClonePowers(powers),
			StartedAt: now,
			UpdatedAt: now,
		}
		created, err := s.sessionRepo.CreateSession(ctx, session)
		if err != nil {
			return nil, err
		}
		if created {
			s.metrics.SessionStarted()
			log.Info().Int64("user_id", userID).Str("play_date", date).Int64("level_id", level.ID).Msg("session started")
		}
		// a concurrent start may have won the insert; the stored row is authoritative
		if existing, err = s.sessionRepo.GetSession(ctx, userID, date); err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("session for user %d on %s vanished after insert", userID, date)
		}
	}
	if existing.IsCompleted() {
		return nil, s.reject(ErrSessionCompleted, "completed")
	}
	return existing, nil
}

// GetSession reports the user's attempt for date, today when date is empty
func (s *GameService) GetSession(ctx context.Context, userID int64, date string) (*puzzle.SessionState, error) {
	if date == "" {
		date = s.Today()
	} else if _, err := puzzle.ParseDate(date); err != nil {
		return nil, ErrInvalidDate
	}

	session, err := s.sessionRepo.GetSession(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &puzzle.SessionState{Status: puzzle.SessionNew}, nil
	}

	state := &puzzle.SessionState{Status: session.Status, Session: session.Snapshot()}
	if session.IsCompleted() {
		score, err := s.scoreRepo.GetScore(ctx, userID, date)
		if err != nil {
			return nil, err
		}
		if score != nil {
			state.Score = score.Record()
		}
	}
	return state, nil
}

// SaveProgress stores the grid, powers and clock of today's playing attempt. Saves are
// last-write-wins; once the attempt is completed they are refused.
func (s *GameService) SaveProgress(ctx context.Context, userID int64, grid puzzle.Grid, powers []puzzle.PowerState, elapsedSeconds int) error {
	err := s.saveProgress(ctx, userID, grid, powers, elapsedSeconds)
	s.metrics.ProgressSaved(err)
	return err
}

func (s *GameService) saveProgress(ctx context.Context, userID int64, grid puzzle.Grid, powers []puzzle.PowerState, elapsedSeconds int) error {
	now := s.clock.now()
	if puzzle.IsFreezeWindow(now) {
		return s.reject(ErrFrozen, "frozen")
	}
	if elapsedSeconds < 0 {
		return s.reject(ErrInvalidProgress, "invalid_elapsed")
	}

	session, err := s.sessionRepo.GetSession(ctx, userID, puzzle.DateKey(now))
	if err != nil {
		return err
	}
	if session == nil {
		return s.reject(ErrNoSession, "no_session")
	}
	if session.IsCompleted() {
		return s.reject(ErrSessionCompleted, "completed")
	}

	level, err := s.levelRepo.GetLevelByID(ctx, session.LevelID)
	if err != nil {
		return err
	}
	if level == nil {
		return ErrLevelNotFound
	}
	if !validGrid(grid, puzzle.BuildEmptyGrid(level.Puzzle())) {
		return s.reject(ErrInvalidProgress, "invalid_grid")
	}
	if powers == nil {
		powers = session.Powers
	} else if !powersWithin(powers, session.Powers) {
		return s.reject(ErrInvalidProgress, "invalid_powers")
	}

	err = s.sessionRepo.SaveProgress(ctx, session.ID, grid.Persisted(), powers, elapsedSeconds)
	if errors.Is(err, repository.ErrNoRowsChanged) {
		return s.reject(ErrSessionCompleted, "completed")
	}
	return err
}

// SaveScore completes the attempt for playDate. The stored grid must solve the level; the
// score and the completed status are written together, and a repeated call returns the
// score already on record instead of writing another.
func (s *GameService) SaveScore(ctx context.Context, userID, levelID int64, completionSeconds int, playDate string) (*puzzle.ScoreRecord, error) {
	now := s.clock.now()
	if puzzle.IsFreezeWindow(now) {
		return nil, s.reject(ErrFrozen, "frozen")
	}
	if _, err := puzzle.ParseDate(playDate); err != nil {
		return nil, ErrInvalidDate
	}
	if completionSeconds < 0 {
		return nil, s.reject(ErrInvalidProgress, "invalid_elapsed")
	}

	var (
		record  *puzzle.ScoreRecord
		written bool
	)
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sessions := repository.NewGameSessionRepository(tx)
		scores := repository.NewScoreRepository(tx)
		levels := repository.NewLevelRepository(tx)

		session, err := sessions.GetSession(ctx, userID, playDate)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrNoSession
		}
		if session.LevelID != levelID {
			return ErrLevelNotFound
		}

		existing, err := scores.GetScore(ctx, userID, playDate)
		if err != nil {
			return err
		}
		if existing != nil {
			record = existing.Record()
			return nil
		}
		if session.IsCompleted() {
			return ErrSessionCompleted
		}

		level, err := levels.GetLevelByID(ctx, levelID)
		if err != nil {
			return err
		}
		if level == nil {
			return ErrLevelNotFound
		}
		if !puzzle.IsWon(puzzle.Validate(session.Grid, level.Puzzle())) {
			return ErrPuzzleNotSolved
		}

		score := &models.Score{
			UserID:            userID,
			LevelID:           levelID,
			PlayDate:          playDate,
			CompletionSeconds: completionSeconds,
			Points:            puzzle.ScorePoints(completionSeconds),
			CreatedAt:         now,
		}
		inserted, err := scores.InsertScore(ctx, score)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := scores.GetScore(ctx, userID, playDate)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("score for user %d on %s was neither written nor found", userID, playDate)
			}
			record = existing.Record()
			return nil
		}
		if err := sessions.MarkCompleted(ctx, session.ID, completionSeconds, now); err != nil &&
			!errors.Is(err, repository.ErrNoRowsChanged) {
			return err
		}
		record = score.Record()
		written = true
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrPuzzleNotSolved):
			s.metrics.Rejected("not_solved")
		case errors.Is(err, ErrNoSession):
			s.metrics.Rejected("no_session")
		}
		return nil, err
	}

	if written {
		s.metrics.ScoreRecorded()
		log.Info().Int64("user_id", userID).Str("play_date", playDate).
			Int("seconds", completionSeconds).Int("points", record.Points).Msg("score recorded")
	}
	return record, nil
}

// validGrid reports whether grid has cells exactly where fresh does and each holds at
// most one uppercase letter
func validGrid(grid, fresh puzzle.Grid) bool {
	if !puzzle.SameShape(grid, fresh) {
		return false
	}
	for _, row := range grid {
		for _, cell := range row {
			if cell == nil || cell.Letter == "" {
				continue
			}
			r, size := utf8.DecodeRuneInString(cell.Letter)
			if size != len(cell.Letter) || !unicode.IsLetter(r) || !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return true
}

// powersWithin reports whether powers only names known power-ups, once each, with no more
// uses than limit grants. Power-ups can be spent but never refilled.
func powersWithin(powers, limit []puzzle.PowerState) bool {
	granted := make(map[puzzle.PowerType]int, len(limit))
	for _, p := range limit {
		granted[p.Type] = p.Uses
	}
	seen := make(map[puzzle.PowerType]bool, len(powers))
	for _, p := range powers {
		allowed, ok := granted[p.Type]
		if !ok || seen[p.Type] || p.Uses < 0 || p.Uses > allowed {
			return false
		}
		seen[p.Type] = true
	}
	return true
}
