package puzzle

import "context"

// SessionStatus is the server-side lifecycle state of a (user, date) attempt
type SessionStatus string

const (
	SessionNew       SessionStatus = "new"
	SessionPlaying   SessionStatus = "playing"
	SessionCompleted SessionStatus = "completed"
)

// SessionSnapshot is the persisted progress of an attempt
type SessionSnapshot struct {
	LevelID        int64        `json:"levelId"`
	PlayDate       string       `json:"playDate"`
	Grid           Grid         `json:"grid"`
	Powers         []PowerState `json:"powers"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
}

// ScoreRecord is a finished attempt
type ScoreRecord struct {
	UserID                int64  `json:"userId"`
	LevelID               int64  `json:"levelId"`
	CompletionTimeSeconds int    `json:"completionTimeSeconds"`
	PlayDate              string `json:"playDate"`
	Points                int    `json:"points"`
}

// SessionState is the answer to a session lookup
type SessionState struct {
	Status  SessionStatus    `json:"status"`
	Session *SessionSnapshot `json:"session,omitempty"`
	Score   *ScoreRecord     `json:"score,omitempty"`
}

// Remote is the durable store the game talks to. GetLevel returns (nil, nil) when no level
// exists for the date. StartSession with nil powers lets the store grant its own allowance.
type Remote interface {
	StartSession(ctx context.Context, levelID int64, grid Grid, powers []PowerState) error
	GetSession(ctx context.Context, date string) (*SessionState, error)
	SaveProgress(ctx context.Context, grid Grid, powers []PowerState, elapsedSeconds int) error
	SaveScore(ctx context.Context, levelID int64, completionTimeSeconds int, playDate string) error
	GetLevel(ctx context.Context, date string) (*Level, error)
	GetLeaderboard(ctx context.Context, month string) ([]LeaderboardEntry, error)
	GetWinners(ctx context.Context, month string) (*MonthWinners, error)
}
