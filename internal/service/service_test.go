package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krosswordle/internal/database"
	"krosswordle/internal/metrics"
	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
	"krosswordle/internal/repository"
	"krosswordle/internal/security"
)

const today = "2026-03-10"

var kodWords = []puzzle.WordPlacement{
	{ID: "1", Word: "KOD", X: 0, Y: 0, Direction: puzzle.Horizontal, Clue: "Program metni"},
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), "../../migrations"))
	return db
}

func clockAt(date string) Clock {
	d, err := puzzle.ParseDate(date)
	if err != nil {
		panic(err)
	}
	at := d.Add(12 * time.Hour)
	return Clock{Location: time.UTC, Now: func() time.Time { return at }}
}

type env struct {
	db          *database.DB
	users       *repository.UserRepository
	auth        *AuthService
	levels      *LevelService
	games       *GameService
	leaderboard *LeaderboardService
	metrics     *metrics.Recorder
}

func newEnv(t *testing.T, date string) *env {
	t.Helper()
	db := openTestDB(t)
	rec := metrics.NewRecorder()
	clock := clockAt(date)
	users := repository.NewUserRepository(db)
	return &env{
		db:     db,
		users:  users,
		auth:   NewAuthService(users, nil, security.NewTokenIssuer("test-secret", time.Hour), time.Hour),
		levels: NewLevelService(repository.NewLevelRepository(db)),
		games:  NewGameService(db, clock, 1, rec),
		leaderboard: NewLeaderboardService(
			repository.NewScoreRepository(db), repository.NewSettingsRepository(db), users,
			nil, "", clock, rec),
		metrics: rec,
	}
}

func (e *env) user(t *testing.T, email, name string) *models.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), email, "password123", name)
	require.NoError(t, err)
	return u
}

func (e *env) level(t *testing.T, date string) *models.Level {
	t.Helper()
	l, err := e.levels.SaveLevel(context.Background(), date, kodWords)
	require.NoError(t, err)
	return l
}

func solvedGrid(level *models.Level) puzzle.Grid {
	g := puzzle.BuildEmptyGrid(level.Puzzle())
	for i, p := range level.Words[0].Cells() {
		g.At(p.X, p.Y).Letter = level.Words[0].LetterAt(i)
	}
	return g
}

type badWords map[string]bool

func (b badWords) ContainsBadWord(_ context.Context, text string) (bool, error) {
	for _, part := range strings.Fields(strings.ToLower(text)) {
		if b[part] {
			return true, nil
		}
	}
	return false, nil
}

func TestAuthRegisterAndLogin(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()

	u := e.user(t, "Ada@Example.com", "Ada")
	assert.Equal(t, "ada@example.com", u.Email)
	assert.True(t, u.IsAdmin, "first account administers the site")
	assert.Contains(t, u.AvatarURL, "gravatar.com")

	_, err := e.auth.Register(ctx, "ada@example.com", "password123", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = e.auth.Register(ctx, "bob@example.com", "password123", "ada")
	assert.ErrorIs(t, err, ErrDisplayNameTaken)
	_, err = e.auth.Register(ctx, "bob@example.com", "short", "Bob")
	assert.Error(t, err)
	_, err = e.auth.Register(ctx, "not-an-email", "password123", "Bob")
	assert.Error(t, err)

	_, _, err = e.auth.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = e.auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, user, err := e.auth.Login(ctx, " ADA@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)

	got, err := e.auth.ValidateSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, e.auth.Logout(ctx, session.ID))
	_, err = e.auth.ValidateSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAuthExpiredSession(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	u := e.user(t, "ada@example.com", "Ada")

	_, err := e.users.CreateSession(ctx, "old", u.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = e.users.CreateSession(ctx, "older", u.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = e.auth.ValidateSession(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionExpired)

	n, err := e.auth.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the validated session was already removed")
}

func TestAuthTokens(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	u := e.user(t, "ada@example.com", "Ada")

	token, exp, err := e.auth.IssueToken(u)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	got, err := e.auth.AuthenticateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = e.auth.AuthenticateToken(ctx, token+"x")
	assert.ErrorIs(t, err, security.ErrInvalidToken)
}

func TestAuthEnsureAdmin(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	e.user(t, "first@example.com", "First")
	bob := e.user(t, "bob@example.com", "Bob")
	assert.False(t, bob.IsAdmin)

	promoted, err := e.auth.EnsureAdmin(ctx, "BOB@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, promoted.ID)
	assert.True(t, promoted.IsAdmin)

	created, err := e.auth.EnsureAdmin(ctx, "ops@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, created.IsAdmin)
	assert.Equal(t, "Admin", created.DisplayName)
	_, _, err = e.auth.Login(ctx, "ops@example.com", "password123")
	assert.NoError(t, err)

	_, err = e.auth.EnsureAdmin(ctx, "weak@example.com", "short")
	assert.Error(t, err)
}

func TestAuthDisplayNameFilter(t *testing.T) {
	e := newEnv(t, today)
	e.auth.filter = badWords{"rude": true}
	ctx := context.Background()

	_, err := e.auth.Register(ctx, "x@example.com", "password123", "Rude Player")
	assert.ErrorIs(t, err, ErrDisplayNameBlocked)

	u := e.user(t, "ada@example.com", "Ada")
	_, err = e.auth.UpdateDisplayName(ctx, u.ID, "rude")
	assert.ErrorIs(t, err, ErrDisplayNameBlocked)

	updated, err := e.auth.UpdateDisplayName(ctx, u.ID, "Countess")
	require.NoError(t, err)
	assert.Equal(t, "Countess", updated.DisplayName)

	_, err = e.auth.UpdateDisplayName(ctx, 999, "Someone")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthOAuthLogin(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()

	t.Run("new user keeps a usable profile name", func(t *testing.T) {
		_, u, err := e.auth.OAuthLogin(ctx, "google", "sub-1", "grace@example.com", "Grace", "https://img/g.png")
		require.NoError(t, err)
		assert.Equal(t, "Grace", u.DisplayName)
		assert.Equal(t, "https://img/g.png", u.AvatarURL)
		assert.Equal(t, "google", u.OAuthProvider)

		_, _, err = e.auth.Login(ctx, "grace@example.com", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "oauth accounts have no password")
	})

	t.Run("same subject signs in again", func(t *testing.T) {
		_, first, err := e.auth.OAuthLogin(ctx, "google", "sub-1", "grace@example.com", "Grace", "")
		require.NoError(t, err)
		_, again, err := e.auth.OAuthLogin(ctx, "google", "sub-1", "grace@example.com", "Grace", "")
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("unusable or taken name is generated", func(t *testing.T) {
		_, u, err := e.auth.OAuthLogin(ctx, "google", "sub-2", "other@example.com", "Grace", "")
		require.NoError(t, err)
		assert.NotEqual(t, "Grace", u.DisplayName)
		assert.Contains(t, u.DisplayName, "-")
	})

	t.Run("existing password account is linked", func(t *testing.T) {
		pw := e.user(t, "linus@example.com", "Linus")
		_, u, err := e.auth.OAuthLogin(ctx, "google", "sub-3", "linus@example.com", "Linus T", "")
		require.NoError(t, err)
		assert.Equal(t, pw.ID, u.ID)

		_, _, err = e.auth.OAuthLogin(ctx, "github", "gh-1", "linus@example.com", "", "")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	_, _, err := e.auth.OAuthLogin(ctx, "", "", "a@example.com", "", "")
	assert.Error(t, err)
}

func TestLevelServiceSave(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()

	saved, err := e.levels.SaveLevel(ctx, today, []puzzle.WordPlacement{
		{ID: " 1 ", Word: "kod", X: 0, Y: 0, Direction: "h", Clue: " Program metni "},
	})
	require.NoError(t, err)
	assert.Equal(t, "KOD", saved.Words[0].Word)
	assert.Equal(t, puzzle.Horizontal, saved.Words[0].Direction)
	assert.Equal(t, "Program metni", saved.Words[0].Clue)

	_, err = e.levels.SaveLevel(ctx, today, []puzzle.WordPlacement{
		{ID: "1", Word: "KOD", X: 9, Y: 0, Direction: puzzle.Horizontal, Clue: "x"},
	})
	assert.ErrorIs(t, err, puzzle.ErrBadWord)

	_, err = e.levels.SaveLevel(ctx, "10/03/2026", kodWords)
	assert.ErrorIs(t, err, ErrInvalidDate)

	replaced, err := e.levels.SaveLevel(ctx, today, kodWords)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, replaced.ID, "unplayed level is replaced in place")

	got, err := e.levels.GetLevel(ctx, today)
	require.NoError(t, err)
	require.NotNil(t, got)
	missing, err := e.levels.GetLevel(ctx, "2026-03-11")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLevelServicePlayedLevelIsLocked(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	u := e.user(t, "ada@example.com", "Ada")
	level := e.level(t, today)

	_, err := e.games.StartSession(ctx, u.ID, level.ID, nil, nil)
	require.NoError(t, err)

	_, err = e.levels.SaveLevel(ctx, today, kodWords)
	assert.ErrorIs(t, err, ErrLevelInUse)
	assert.ErrorIs(t, e.levels.DeleteLevel(ctx, today), ErrLevelInUse)

	e.level(t, "2026-03-12")
	require.NoError(t, e.levels.DeleteLevel(ctx, "2026-03-12"))
	assert.ErrorIs(t, e.levels.DeleteLevel(ctx, "2026-03-12"), ErrLevelNotFound)
}

const levelYAML = `
levels:
  - date: "2026-03-10"
    words:
      - {id: "1", word: kod, x: 0, y: 0, direction: h, clue: Program metni}
  - date: "2026-03-11"
    words:
      - {id: "1", word: KAR, x: 0, y: 0, direction: horizontal, clue: Snow}
      - {id: "2", word: KOL, x: 0, y: 0, direction: vertical, clue: Arm}
`

func TestLevelImport(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()

	n, err := e.levels.ImportLevels(ctx, strings.NewReader(levelYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	levels, err := e.levels.ListLevels(ctx, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "KOD", levels[0].Words[0].Word)
	assert.Len(t, levels[1].Words, 2)

	_, err = e.levels.ListLevels(ctx, "March", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseLevelFileRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "bad date", yaml: "levels:\n  - date: \"tomorrow\"\n    words: []\n", want: "invalid date"},
		{name: "duplicate date", yaml: "levels:\n  - date: \"2026-03-10\"\n    words:\n      - {id: \"1\", word: A, x: 0, y: 0, direction: h, clue: c}\n  - date: \"2026-03-10\"\n    words:\n      - {id: \"1\", word: A, x: 0, y: 0, direction: h, clue: c}\n", want: "duplicate date"},
		{name: "empty level", yaml: "levels:\n  - date: \"2026-03-10\"\n    words: []\n", want: "no words"},
		{name: "crossing conflict", yaml: "levels:\n  - date: \"2026-03-10\"\n    words:\n      - {id: \"1\", word: AB, x: 0, y: 0, direction: h, clue: c}\n      - {id: \"2\", word: CD, x: 0, y: 0, direction: v, clue: c}\n", want: "conflicts"},
		{name: "unknown field", yaml: "levels:\n  - date: \"2026-03-10\"\n    colour: red\n", want: "colour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLevelFile(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGameSessionLifecycle(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	u := e.user(t, "ada@example.com", "Ada")
	level := e.level(t, today)

	state, err := e.games.GetSession(ctx, u.ID, "")
	require.NoError(t, err)
	assert.Equal(t, puzzle.SessionNew, state.Status)

	started, err := e.games.StartSession(ctx, u.ID, level.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, puzzle.SessionPlaying, started.Status)
	assert.Equal(t, puzzle.DefaultPowers(1), started.Powers)

	again, err := e.games.StartSession(ctx, u.ID, level.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, started.ID, again.ID, "starting twice keeps the attempt")

	// partial progress is saved but cannot be scored
	partial := puzzle.BuildEmptyGrid(level.Puzzle())
	partial.At(0, 0).Letter = "K"
	require.NoError(t, e.games.SaveProgress(ctx, u.ID, partial, []puzzle.PowerState{
		{Type: puzzle.MiddleLetter, Uses: 0}, {Type: puzzle.SwapReveal, Uses: 1}, {Type: puzzle.Bomb, Uses: 1},
	}, 17))

	state, err = e.games.GetSession(ctx, u.ID, today)
	require.NoError(t, err)
	assert.Equal(t, puzzle.SessionPlaying, state.Status)
	assert.Equal(t, 17, state.Session.ElapsedSeconds)
	assert.Equal(t, "K", state.Session.Grid.At(0, 0).Letter)
	assert.Equal(t, 0, state.Session.Powers[0].Uses)

	_, err = e.games.SaveScore(ctx, u.ID, level.ID, 20, today)
	assert.ErrorIs(t, err, ErrPuzzleNotSolved)

	// spent power-ups cannot be refilled
	err = e.games.SaveProgress(ctx, u.ID, partial, puzzle.DefaultPowers(1), 18)
	assert.ErrorIs(t, err, ErrInvalidProgress)

	require.NoError(t, e.games.SaveProgress(ctx, u.ID, solvedGrid(level), nil, 42))
	record, err := e.games.SaveScore(ctx, u.ID, level.ID, 42, today)
	require.NoError(t, err)
	assert.Equal(t, 958, record.Points)
	assert.Equal(t, 42, record.CompletionTimeSeconds)

	repeat, err := e.games.SaveScore(ctx, u.ID, level.ID, 5, today)
	require.NoError(t, err)
	assert.Equal(t, record, repeat, "the first score stands")

	state, err = e.games.GetSession(ctx, u.ID, today)
	require.NoError(t, err)
	assert.Equal(t, puzzle.SessionCompleted, state.Status)
	require.NotNil(t, state.Score)
	assert.Equal(t, 42, state.Score.CompletionTimeSeconds)

	err = e.games.SaveProgress(ctx, u.ID, partial, nil, 50)
	assert.ErrorIs(t, err, ErrSessionCompleted)
	_, err = e.games.StartSession(ctx, u.ID, level.ID, nil, nil)
	assert.ErrorIs(t, err, ErrSessionCompleted)

	state, err = e.games.GetSession(ctx, u.ID, today)
	require.NoError(t, err)
	assert.True(t, state.Session.Grid.Equal(solvedGrid(level)), "completed grid is immutable")
}

func TestGameServiceRejections(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	u := e.user(t, "ada@example.com", "Ada")
	level := e.level(t, today)
	tomorrow := e.level(t, "2026-03-11")

	_, err := e.games.StartSession(ctx, u.ID, 999, nil, nil)
	assert.ErrorIs(t, err, ErrLevelNotFound)
	_, err = e.games.StartSession(ctx, u.ID, tomorrow.ID, nil, nil)
	assert.ErrorIs(t, err, ErrLevelNotToday)

	wrongShape := puzzle.BuildEmptyGrid(tomorrow.Puzzle())
	wrongShape[5][5] = &puzzle.Cell{}
	_, err = e.games.StartSession(ctx, u.ID, level.ID, wrongShape, nil)
	assert.ErrorIs(t, err, ErrInvalidProgress)

	badLetter := puzzle.BuildEmptyGrid(level.Puzzle())
	badLetter.At(0, 0).Letter = "KO"
	_, err = e.games.StartSession(ctx, u.ID, level.ID, badLetter, nil)
	assert.ErrorIs(t, err, ErrInvalidProgress)

	_, err = e.games.StartSession(ctx, u.ID, level.ID, nil, puzzle.DefaultPowers(5))
	assert.ErrorIs(t, err, ErrInvalidProgress)

	assert.ErrorIs(t, e.games.SaveProgress(ctx, u.ID, solvedGrid(level), nil, 1), ErrNoSession)
	_, err = e.games.SaveScore(ctx, u.ID, level.ID, 1, today)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = e.games.SaveScore(ctx, u.ID, level.ID, 1, "yesterday")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = e.games.StartSession(ctx, u.ID, level.ID, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, e.games.SaveProgress(ctx, u.ID, solvedGrid(level), nil, -1), ErrInvalidProgress)
	_, err = e.games.SaveScore(ctx, u.ID, tomorrow.ID, 1, today)
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestGameServiceFreezeDay(t *testing.T) {
	e := newEnv(t, "2026-03-31")
	ctx := context.Background()
	u := e.user(t, "ada@example.com", "Ada")
	level := e.level(t, "2026-03-31")

	_, err := e.games.StartSession(ctx, u.ID, level.ID, nil, nil)
	assert.ErrorIs(t, err, ErrFrozen)
	assert.ErrorIs(t, e.games.SaveProgress(ctx, u.ID, solvedGrid(level), nil, 1), ErrFrozen)
	_, err = e.games.SaveScore(ctx, u.ID, level.ID, 1, "2026-03-31")
	assert.ErrorIs(t, err, ErrFrozen)

	status := e.leaderboard.Freeze()
	assert.True(t, status.Frozen)
	assert.Equal(t, "2026-03", status.Month)
}

func completeAt(t *testing.T, db *database.DB, userID int64, date string, seconds int) {
	t.Helper()
	ctx := context.Background()
	levels := NewLevelService(repository.NewLevelRepository(db))
	level, err := levels.GetLevel(ctx, date)
	require.NoError(t, err)
	if level == nil {
		level, err = levels.SaveLevel(ctx, date, kodWords)
		require.NoError(t, err)
	}
	games := NewGameService(db, clockAt(date), 1, nil)
	_, err = games.StartSession(ctx, userID, level.ID, nil, nil)
	require.NoError(t, err)
	require.NoError(t, games.SaveProgress(ctx, userID, solvedGrid(level), nil, seconds))
	_, err = games.SaveScore(ctx, userID, level.ID, seconds, date)
	require.NoError(t, err)
}

func TestLeaderboardRanking(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	ada := e.user(t, "ada@example.com", "Ada")
	bob := e.user(t, "bob@example.com", "Bob")
	cem := e.user(t, "cem@example.com", "Cem")

	completeAt(t, e.db, ada.ID, "2026-03-02", 90)
	completeAt(t, e.db, ada.ID, "2026-03-03", 30)
	completeAt(t, e.db, bob.ID, "2026-03-02", 30)
	completeAt(t, e.db, bob.ID, "2026-03-03", 20)
	completeAt(t, e.db, cem.ID, "2026-02-27", 5)

	entries, err := e.leaderboard.Leaderboard(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2, "february scores are not in march")

	assert.Equal(t, bob.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 20, entries[0].BestTime)
	assert.Equal(t, 2, entries[0].GamesPlayed)
	assert.Equal(t, (1000-30)+(1000-20), entries[0].TotalScore)
	assert.InDelta(t, 25.0, entries[0].AvgTime, 0.001)
	assert.Equal(t, "Bob", entries[0].DisplayName)

	assert.Equal(t, ada.ID, entries[1].UserID)
	assert.Equal(t, 2, entries[1].Rank)

	feb, err := e.leaderboard.Leaderboard(ctx, "2026-02")
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, cem.ID, feb[0].UserID)

	empty, err := e.leaderboard.Leaderboard(ctx, "2025-01")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = e.leaderboard.Leaderboard(ctx, "March")
	assert.ErrorIs(t, err, ErrInvalidMonth)

	require.NoError(t, e.leaderboard.SetPrize(ctx, "A signed dictionary"))
	winners, err := e.leaderboard.Winners(ctx, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, "A signed dictionary", winners.Prize)
	assert.Len(t, winners.Entries, 2)
}

type fakeNotifier struct {
	mu        sync.Mutex
	enabled   bool
	fail      bool
	failFor   string
	winners   []string
	summaries []string
}

func (f *fakeNotifier) IsEnabled() bool { return f.enabled }

func (f *fakeNotifier) SendWinnerEmail(_ context.Context, to string, _ *models.Winners, rank int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || to == f.failFor {
		return errors.New("ses unavailable")
	}
	f.winners = append(f.winners, to)
	return nil
}

func (f *fakeNotifier) SendWinnersSummary(_ context.Context, to string, _ *models.Winners) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, to)
	return nil
}

func TestNotifyWinnersOncePerMonth(t *testing.T) {
	e := newEnv(t, "2026-03-31")
	ctx := context.Background()
	ada := e.user(t, "ada@example.com", "Ada")
	completeAt(t, e.db, ada.ID, "2026-03-02", 60)

	notifier := &fakeNotifier{enabled: true, fail: true}
	e.leaderboard.notifier = notifier
	e.leaderboard.adminEmail = "admin@example.com"

	sent, err := e.leaderboard.NotifyIfMonthEnd(ctx)
	assert.Error(t, err)
	assert.False(t, sent)

	notifier.fail = false
	sent, err = e.leaderboard.NotifyIfMonthEnd(ctx)
	require.NoError(t, err)
	assert.True(t, sent, "a failed send is retried")
	assert.Equal(t, []string{"ada@example.com"}, notifier.winners)
	assert.Equal(t, []string{"admin@example.com"}, notifier.summaries)

	sent, err = e.leaderboard.NotifyIfMonthEnd(ctx)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, notifier.winners, 1)
}

func TestNotifyWinnersRetrySkipsNotifiedWinners(t *testing.T) {
	e := newEnv(t, "2026-03-31")
	ctx := context.Background()
	ada := e.user(t, "ada@example.com", "Ada")
	bob := e.user(t, "bob@example.com", "Bob")
	completeAt(t, e.db, ada.ID, "2026-03-02", 60)
	completeAt(t, e.db, bob.ID, "2026-03-02", 90)

	notifier := &fakeNotifier{enabled: true, failFor: "bob@example.com"}
	e.leaderboard.notifier = notifier
	e.leaderboard.adminEmail = "admin@example.com"

	sent, err := e.leaderboard.NotifyWinners(ctx, "2026-03")
	assert.Error(t, err)
	assert.False(t, sent)
	assert.Equal(t, []string{"ada@example.com"}, notifier.winners)
	assert.Empty(t, notifier.summaries)

	notifier.failFor = ""
	sent, err = e.leaderboard.NotifyWinners(ctx, "2026-03")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"ada@example.com", "bob@example.com"}, notifier.winners, "ada is not emailed twice")
	assert.Equal(t, []string{"admin@example.com"}, notifier.summaries)
}

func TestNotifyOutsideFreezeDoesNothing(t *testing.T) {
	e := newEnv(t, today)
	notifier := &fakeNotifier{enabled: true}
	e.leaderboard.notifier = notifier

	sent, err := e.leaderboard.NotifyIfMonthEnd(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)

	e.leaderboard.notifier = &fakeNotifier{enabled: false}
	sent, err = e.leaderboard.NotifyWinners(context.Background(), "2026-03")
	require.NoError(t, err)
	assert.False(t, sent, "disabled email never claims the month")
}

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sesv2.SendEmailOutput{}, nil
}

func TestEmailService(t *testing.T) {
	disabled, err := NewEmailService(context.Background(), "us-east-1", "", "", "")
	require.NoError(t, err)
	assert.False(t, disabled.IsEnabled())
	require.NoError(t, disabled.SendWinnerEmail(context.Background(), "a@example.com", &models.Winners{}, 1))

	ses := &fakeSES{}
	svc := newEmailService(ses, "noreply@example.com", "KrossWordle", "https://kross.example.com/")
	winners := &models.Winners{Month: "2026-03", Prize: "Mug", Entries: []puzzle.LeaderboardEntry{
		{UserID: 1, DisplayName: "Ada", Rank: 1, TotalScore: 900, BestTime: 30},
	}}
	require.NoError(t, svc.SendWinnerEmail(context.Background(), "ada@example.com", winners, 1))
	require.NoError(t, svc.SendWinnersSummary(context.Background(), "admin@example.com", winners))

	require.Len(t, ses.inputs, 2)
	first := ses.inputs[0]
	assert.Equal(t, "KrossWordle <noreply@example.com>", *first.FromEmailAddress)
	assert.Equal(t, []string{"ada@example.com"}, first.Destination.ToAddresses)
	assert.Contains(t, *first.Content.Simple.Subject.Data, "#1")
	assert.Contains(t, *first.Content.Simple.Body.Text.Data, "Mug")
	assert.Contains(t, *first.Content.Simple.Body.Text.Data, "https://kross.example.com/leaderboard?month=2026-03")
	assert.Contains(t, *ses.inputs[1].Content.Simple.Body.Text.Data, "#1 Ada: 900 points")
}

func TestBackupRoundTrip(t *testing.T) {
	src := newEnv(t, today)
	ctx := context.Background()
	ada := src.user(t, "ada@example.com", "Ada")
	completeAt(t, src.db, ada.ID, today, 40)
	require.NoError(t, src.leaderboard.SetPrize(ctx, "Mug"))

	var buf bytes.Buffer
	require.NoError(t, NewBackupService(src.db).ExportToWriter(ctx, &buf))

	dst := newEnv(t, today)
	require.NoError(t, NewBackupService(dst.db).ImportFromReader(ctx, &buf))

	state, err := dst.games.GetSession(ctx, ada.ID, today)
	require.NoError(t, err)
	assert.Equal(t, puzzle.SessionCompleted, state.Status)
	require.NotNil(t, state.Score)
	assert.Equal(t, 960, state.Score.Points)

	_, _, err = dst.auth.Login(ctx, "ada@example.com", "password123")
	assert.NoError(t, err, "password hashes survive the round trip")

	winners, err := dst.leaderboard.Winners(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Mug", winners.Prize)
	require.Len(t, winners.Entries, 1)

	// new rows continue after the restored IDs
	bob := dst.user(t, "bob@example.com", "Bob")
	assert.Greater(t, bob.ID, ada.ID)

	err = NewBackupService(dst.db).ImportFromReader(ctx, strings.NewReader(`{"version":"0.1"}`))
	assert.Error(t, err)
}

func TestLocalRemoteDrivesGame(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	ada := e.user(t, "ada@example.com", "Ada")
	e.level(t, today)

	remote := NewLocalRemote(ada.ID, e.games, e.levels, e.leaderboard)
	game := puzzle.NewGame(remote, puzzle.Options{
		Location: time.UTC,
		Now:      e.games.clock.Now,
		Rand:     puzzle.NewRand(1),
	})
	defer game.Close()

	require.NoError(t, game.Load(ctx))
	require.Equal(t, puzzle.StateUnstarted, game.State())
	require.NoError(t, game.Start(ctx))
	for i := 0; i < 12; i++ {
		game.Tick()
	}
	require.NoError(t, game.Autosave(ctx))

	// a second host for the same user resumes where the first left off
	resumed := puzzle.NewGame(remote, puzzle.Options{Location: time.UTC, Now: e.games.clock.Now})
	defer resumed.Close()
	require.NoError(t, resumed.Load(ctx))
	assert.Equal(t, puzzle.StatePlaying, resumed.State())
	assert.Equal(t, 12, resumed.Elapsed())

	assert.True(t, game.TypeLetter(0, 0, 'k'))
	assert.True(t, game.TypeLetter(1, 0, 'o'))
	assert.True(t, game.TypeLetter(2, 0, 'd'))
	game.Flush()
	assert.Equal(t, puzzle.StateCompleted, game.State())

	state, err := e.games.GetSession(ctx, ada.ID, today)
	require.NoError(t, err)
	assert.Equal(t, puzzle.SessionCompleted, state.Status)
	require.NotNil(t, state.Score)
	assert.Equal(t, 12, state.Score.CompletionTimeSeconds)

	view := game.View()
	require.NotNil(t, view.Score)
	require.Len(t, view.Leaderboard, 1)
	assert.Equal(t, ada.ID, view.Leaderboard[0].UserID)
}

func TestLocalRemoteAdoptsGrantedPowers(t *testing.T) {
	e := newEnv(t, today)
	ctx := context.Background()
	ada := e.user(t, "ada@example.com", "Ada")
	e.level(t, today)

	games := NewGameService(e.db, e.games.clock, 3, e.metrics)
	remote := NewLocalRemote(ada.ID, games, e.levels, e.leaderboard)
	game := puzzle.NewGame(remote, puzzle.Options{Location: time.UTC, Now: e.games.clock.Now})
	defer game.Close()

	require.NoError(t, game.Load(ctx))
	assert.Equal(t, puzzle.DefaultPowers(1), game.View().Powers, "the tray shows one use before starting")
	require.NoError(t, game.Start(ctx))
	assert.Equal(t, puzzle.DefaultPowers(3), game.View().Powers)

	require.True(t, game.SelectCell(0, 0))
	require.True(t, game.UsePower(puzzle.MiddleLetter))
	require.NoError(t, game.Autosave(ctx), "spending a granted use is within the allowance")

	state, err := games.GetSession(ctx, ada.ID, today)
	require.NoError(t, err)
	require.NotNil(t, state.Session)
	for _, ps := range state.Session.Powers {
		want := 3
		if ps.Type == puzzle.MiddleLetter {
			want = 2
		}
		assert.Equal(t, want, ps.Uses, string(ps.Type))
	}
}
