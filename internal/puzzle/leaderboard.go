package puzzle

import (
	"sort"
	"time"
)

const (
	basePoints = 1000
	minPoints  = 100
)

// ScorePoints is the leaderboard credit for one completed puzzle. Faster solves earn more,
// every solve earns at least minPoints.
func ScorePoints(completionSeconds int) int {
	points := basePoints - completionSeconds
	if points < minPoints {
		return minPoints
	}
	return points
}

// LeaderboardEntry is one user's aggregated standing for a month
type LeaderboardEntry struct {
	UserID      int64   `json:"userId"`
	DisplayName string  `json:"displayName"`
	AvatarURL   string  `json:"avatarUrl"`
	TotalScore  int     `json:"totalScore"`
	GamesPlayed int     `json:"gamesPlayed"`
	AvgTime     float64 `json:"avgTime"`
	BestTime    int     `json:"bestTime"`
	Rank        int     `json:"rank"`
}

// MonthWinners is the top of a month's leaderboard together with the prize on offer
type MonthWinners struct {
	Month   string             `json:"month"`
	Prize   string             `json:"prize"`
	Entries []LeaderboardEntry `json:"entries"`
}

// ScoreRow is one recorded completion used to build a leaderboard
type ScoreRow struct {
	UserID            int64
	DisplayName       string
	AvatarURL         string
	CompletionSeconds int
	Points            int
	CreatedAt         time.Time
}

type standing struct {
	entry     LeaderboardEntry
	totalTime int
	bestAt    time.Time
}

// RankScores aggregates completions per user and ranks them by best time, fastest first.
// Ties on best time go to whoever set that time first, then to the lower user ID.
func RankScores(rows []ScoreRow) []LeaderboardEntry {
	byUser := make(map[int64]*standing)
	for _, r := range rows {
		s, ok := byUser[r.UserID]
		if !ok {
			s = &standing{entry: LeaderboardEntry{
				UserID:      r.UserID,
				DisplayName: r.DisplayName,
				AvatarURL:   r.AvatarURL,
				BestTime:    r.CompletionSeconds,
			}, bestAt: r.CreatedAt}
			byUser[r.UserID] = s
		}
		s.entry.GamesPlayed++
		s.entry.TotalScore += r.Points
		s.totalTime += r.CompletionSeconds
		if r.CompletionSeconds < s.entry.BestTime ||
			(r.CompletionSeconds == s.entry.BestTime && r.CreatedAt.Before(s.bestAt)) {
			s.entry.BestTime = r.CompletionSeconds
			s.bestAt = r.CreatedAt
		}
	}

	standings := make([]*standing, 0, len(byUser))
	for _, s := range byUser {
		s.entry.AvgTime = float64(s.totalTime) / float64(s.entry.GamesPlayed)
		standings = append(standings, s)
	}
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.entry.BestTime != b.entry.BestTime {
			return a.entry.BestTime < b.entry.BestTime
		}
		if !a.bestAt.Equal(b.bestAt) {
			return a.bestAt.Before(b.bestAt)
		}
		return a.entry.UserID < b.entry.UserID
	})

	out := make([]LeaderboardEntry, len(standings))
	for i, s := range standings {
		s.entry.Rank = i + 1
		out[i] = s.entry
	}
	return out
}

// Winners returns the top n entries of a ranked leaderboard
func Winners(ranked []LeaderboardEntry, n int) []LeaderboardEntry {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	out := make([]LeaderboardEntry, n)
	copy(out, ranked[:n])
	return out
}
