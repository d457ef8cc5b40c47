package models

import (
	"time"

	"krosswordle/internal/puzzle"
)

// Level is a stored daily puzzle
type Level struct {
	ID        int64                  `json:"id"`
	PlayDate  string                 `json:"playDate"`
	Words     []puzzle.WordPlacement `json:"words"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Puzzle converts the stored level to the engine's level type
func (l *Level) Puzzle() *puzzle.Level {
	return &puzzle.Level{ID: l.ID, Date: l.PlayDate, Words: l.Words}
}

// GameSession is one user's durable attempt at one day's level
type GameSession struct {
	ID             int64                `json:"id"`
	UserID         int64                `json:"userId"`
	LevelID        int64                `json:"levelId"`
	PlayDate       string               `json:"playDate"`
	Status         puzzle.SessionStatus `json:"status"`
	Grid           puzzle.Grid          `json:"grid"`
	Powers         []puzzle.PowerState  `json:"powers"`
	ElapsedSeconds int                  `json:"elapsedSeconds"`
	StartedAt      time.Time            `json:"startedAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
}

// IsCompleted reports whether the attempt is finished and frozen
func (s *GameSession) IsCompleted() bool {
	return s.Status == puzzle.SessionCompleted
}

// Snapshot returns the engine view of the stored progress
func (s *GameSession) Snapshot() *puzzle.SessionSnapshot {
	return &puzzle.SessionSnapshot{
		LevelID:        s.LevelID,
		PlayDate:       s.PlayDate,
		Grid:           s.Grid,
		Powers:         s.Powers,
		ElapsedSeconds: s.ElapsedSeconds,
	}
}

// Score is a recorded completion. It is written once per user and date.
type Score struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"userId"`
	LevelID           int64     `json:"levelId"`
	PlayDate          string    `json:"playDate"`
	CompletionSeconds int       `json:"completionSeconds"`
	Points            int       `json:"points"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Record returns the engine view of the score
func (s *Score) Record() *puzzle.ScoreRecord {
	return &puzzle.ScoreRecord{
		UserID:                s.UserID,
		LevelID:               s.LevelID,
		CompletionTimeSeconds: s.CompletionSeconds,
		PlayDate:              s.PlayDate,
		Points:                s.Points,
	}
}

// Winners is the month's podium as served by the API
type Winners = puzzle.MonthWinners
