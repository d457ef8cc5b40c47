package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"krosswordle/internal/puzzle"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{name: "future expiration", expiresAt: time.Now().Add(1 * time.Hour), want: false},
		{name: "just expired", expiresAt: time.Now().Add(-1 * time.Second), want: true},
		{name: "expired yesterday", expiresAt: time.Now().Add(-24 * time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{ID: "test-session", UserID: 1, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, session.IsExpired())
		})
	}
}

func TestGameSessionViews(t *testing.T) {
	level := &Level{ID: 4, PlayDate: "2026-10-05", Words: []puzzle.WordPlacement{
		{ID: "1", Word: "EV", X: 0, Y: 0, Direction: puzzle.Horizontal, Clue: "Yuva"},
	}}
	pl := level.Puzzle()
	assert.Equal(t, int64(4), pl.ID)
	assert.Equal(t, "2026-10-05", pl.Date)

	gs := &GameSession{LevelID: 4, PlayDate: "2026-10-05", Status: puzzle.SessionPlaying, ElapsedSeconds: 12}
	assert.False(t, gs.IsCompleted())
	assert.Equal(t, 12, gs.Snapshot().ElapsedSeconds)

	gs.Status = puzzle.SessionCompleted
	assert.True(t, gs.IsCompleted())

	score := &Score{UserID: 2, LevelID: 4, PlayDate: "2026-10-05", CompletionSeconds: 40, Points: 960}
	assert.Equal(t, puzzle.ScoreRecord{UserID: 2, LevelID: 4, PlayDate: "2026-10-05", CompletionTimeSeconds: 40, Points: 960}, *score.Record())
}
