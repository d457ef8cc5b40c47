package service

import (
	"context"

	"krosswordle/internal/puzzle"
)

// LocalRemote is an in-process puzzle.Remote for one user, backed directly by the services
type LocalRemote struct {
	userID      int64
	games       *GameService
	levels      *LevelService
	leaderboard *LeaderboardService
}

var _ puzzle.Remote = (*LocalRemote)(nil)

// NewLocalRemote binds the services to userID
func NewLocalRemote(userID int64, games *GameService, levels *LevelService, leaderboard *LeaderboardService) *LocalRemote {
	return &LocalRemote{userID: userID, games: games, levels: levels, leaderboard: leaderboard}
}

func (r *LocalRemote) StartSession(ctx context.Context, levelID int64, grid puzzle.Grid, powers []puzzle.PowerState) error {
	_, err := r.games.StartSession(ctx, r.userID, levelID, grid, powers)
	return err
}

func (r *LocalRemote) GetSession(ctx context.Context, date string) (*puzzle.SessionState, error) {
	return r.games.GetSession(ctx, r.userID, date)
}

func (r *LocalRemote) SaveProgress(ctx context.Context, grid puzzle.Grid, powers []puzzle.PowerState, elapsedSeconds int) error {
	return r.games.SaveProgress(ctx, r.userID, grid, powers, elapsedSeconds)
}

func (r *LocalRemote) SaveScore(ctx context.Context, levelID int64, completionTimeSeconds int, playDate string) error {
	_, err := r.games.SaveScore(ctx, r.userID, levelID, completionTimeSeconds, playDate)
	return err
}

// GetLevel returns nil, nil when no level is scheduled for date
func (r *LocalRemote) GetLevel(ctx context.Context, date string) (*puzzle.Level, error) {
	level, err := r.levels.GetLevel(ctx, date)
	if err != nil || level == nil {
		return nil, err
	}
	return level.Puzzle(), nil
}

func (r *LocalRemote) GetLeaderboard(ctx context.Context, month string) ([]puzzle.LeaderboardEntry, error) {
	return r.leaderboard.Leaderboard(ctx, month)
}

func (r *LocalRemote) GetWinners(ctx context.Context, month string) (*puzzle.MonthWinners, error) {
	return r.leaderboard.Winners(ctx, month)
}
