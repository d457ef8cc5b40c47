package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"krosswordle/internal/metrics"
	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
	"krosswordle/internal/repository"
)

// WinnerCount is how many places the monthly podium has
const WinnerCount = 3

var ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM")

// WinnerNotifier delivers the monthly results
type WinnerNotifier interface {
	IsEnabled() bool
	SendWinnerEmail(ctx context.Context, toEmail string, winners *models.Winners, rank int) error
	SendWinnersSummary(ctx context.Context, toEmail string, winners *models.Winners) error
}

// FreezeStatus tells clients whether play is closed for the month-end results
type FreezeStatus struct {
	Frozen bool   `json:"frozen"`
	Date   string `json:"date"`
	Month  string `json:"month"`
}

// LeaderboardService ranks monthly results and announces the winners
type LeaderboardService struct {
	scoreRepo    *repository.ScoreRepository
	settingsRepo *repository.SettingsRepository
	userRepo     *repository.UserRepository
	notifier     WinnerNotifier
	adminEmail   string
	clock        Clock
	metrics      *metrics.Recorder
}

// NewLeaderboardService creates a new leaderboard service. notifier may be nil.
func NewLeaderboardService(
	scoreRepo *repository.ScoreRepository,
	settingsRepo *repository.SettingsRepository,
	userRepo *repository.UserRepository,
	notifier WinnerNotifier,
	adminEmail string,
	clock Clock,
	rec *metrics.Recorder,
) *LeaderboardService {
	return &LeaderboardService{
		scoreRepo:    scoreRepo,
		settingsRepo: settingsRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		adminEmail:   adminEmail,
		clock:        clock,
		metrics:      rec,
	}
}

// CurrentMonth returns the leaderboard month in the puzzle time zone
func (s *LeaderboardService) CurrentMonth() string {
	return puzzle.MonthKey(s.clock.now())
}

// Freeze reports the month-end freeze for the current puzzle date
func (s *LeaderboardService) Freeze() FreezeStatus {
	now := s.clock.now()
	return FreezeStatus{
		Frozen: puzzle.IsFreezeWindow(now),
		Date:   puzzle.DateKey(now),
		Month:  puzzle.MonthKey(now),
	}
}

// Leaderboard ranks every player with a completion in month, the current month when empty
func (s *LeaderboardService) Leaderboard(ctx context.Context, month string) ([]puzzle.LeaderboardEntry, error) {
	if month == "" {
		month = s.CurrentMonth()
	}
	from, to, err := puzzle.MonthRange(month)
	if err != nil {
		return nil, ErrInvalidMonth
	}
	rows, err := s.scoreRepo.ScoreRows(ctx, from, to)
	if err != nil {
		return nil, err
	}
	entries := puzzle.RankScores(rows)
	if entries == nil {
		entries = []puzzle.LeaderboardEntry{}
	}
	return entries, nil
}

// Winners returns the month's podium with the prize text
func (s *LeaderboardService) Winners(ctx context.Context, month string) (*models.Winners, error) {
	if month == "" {
		month = s.CurrentMonth()
	}
	entries, err := s.Leaderboard(ctx, month)
	if err != nil {
		return nil, err
	}
	prize, err := s.settingsRepo.MonthlyPrize(ctx)
	if err != nil {
		return nil, err
	}
	top := puzzle.Winners(entries, WinnerCount)
	if top == nil {
		top = []puzzle.LeaderboardEntry{}
	}
	return &models.Winners{Month: month, Prize: prize, Entries: top}, nil
}

// SetPrize changes the prize text shown with the winners
func (s *LeaderboardService) SetPrize(ctx context.Context, prize string) error {
	return s.settingsRepo.SetMonthlyPrize(ctx, prize)
}

// NotifyWinners emails the month's podium once. It reports false when the month was
// already announced or email is off. A failed send releases the claim so a later run
// retries; recipients already emailed are skipped on that run.
func (s *LeaderboardService) NotifyWinners(ctx context.Context, month string) (bool, error) {
	if s.notifier == nil || !s.notifier.IsEnabled() {
		return false, nil
	}
	if _, _, err := puzzle.MonthRange(month); err != nil {
		return false, ErrInvalidMonth
	}

	claimed, err := s.settingsRepo.ClaimWinnersNotification(ctx, month)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if err := s.sendWinners(ctx, month); err != nil {
		if relErr := s.settingsRepo.ReleaseWinnersNotification(ctx, month); relErr != nil {
			log.Error().Err(relErr).Str("month", month).Msg("failed to release winners notification")
		}
		return false, err
	}
	s.metrics.WinnersNotified()
	log.Info().Str("month", month).Msg("winners notified")
	return true, nil
}

func (s *LeaderboardService) sendWinners(ctx context.Context, month string) error {
	winners, err := s.Winners(ctx, month)
	if err != nil {
		return err
	}
	for _, e := range winners.Entries {
		recipient := strconv.FormatInt(e.UserID, 10)
		err := s.once(ctx, month, recipient, func() error {
			user, err := s.userRepo.GetUserByID(ctx, e.UserID)
			if err != nil || user == nil {
				return err
			}
			if err := s.notifier.SendWinnerEmail(ctx, user.Email, winners, e.Rank); err != nil {
				return fmt.Errorf("failed to notify user %d: %w", e.UserID, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if s.adminEmail == "" {
		return nil
	}
	return s.once(ctx, month, "admin", func() error {
		return s.notifier.SendWinnersSummary(ctx, s.adminEmail, winners)
	})
}

// once runs send unless recipient was already emailed for month, and records it afterwards
func (s *LeaderboardService) once(ctx context.Context, month, recipient string, send func() error) error {
	done, err := s.settingsRepo.WinnerEmailed(ctx, month, recipient)
	if err != nil || done {
		return err
	}
	if err := send(); err != nil {
		return err
	}
	if err := s.settingsRepo.MarkWinnerEmailed(ctx, month, recipient); err != nil {
		log.Error().Err(err).Str("month", month).Str("recipient", recipient).Msg("failed to record winners email")
	}
	return nil
}

// NotifyIfMonthEnd announces the current month's winners during the month-end freeze.
// The server calls it on a timer; outside the freeze it does nothing.
func (s *LeaderboardService) NotifyIfMonthEnd(ctx context.Context) (bool, error) {
	status := s.Freeze()
	if !status.Frozen {
		return false, nil
	}
	return s.NotifyWinners(ctx, status.Month)
}
