package puzzle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is where the host is in the daily puzzle flow
type State string

const (
	StateLoading   State = "loading"
	StateNoLevel   State = "no_level"
	StateFrozen    State = "frozen"
	StateUnstarted State = "unstarted"
	StatePlaying   State = "playing"
	StateCompleted State = "completed"
)

const (
	DefaultTickInterval     = time.Second
	DefaultAutosaveInterval = 5 * time.Second
	defaultRequestTimeout   = 10 * time.Second
)

var (
	ErrNotStartable = errors.New("game cannot be started in its current state")
	ErrClosed       = errors.New("game is closed")
)

// Options tunes a Game. Zero values fall back to the production defaults.
type Options struct {
	TickInterval       time.Duration
	AutosaveInterval   time.Duration
	BombEffectDuration time.Duration
	RequestTimeout     time.Duration
	// Powers fills the tray before an attempt starts; nil means one use of each type.
	// Once started, the game plays with whatever allowance the remote store granted.
	Powers   []PowerState
	Location *time.Location
	Now      func() time.Time
	Rand     Rand
	Logger   *zerolog.Logger
}

// View is a read-only snapshot for rendering
type View struct {
	State          State
	Date           string
	Level          *Level
	Grid           Grid
	Powers         []PowerState
	Cursor         *Position
	ActiveWord     *WordPlacement
	Results        []WordResult
	ElapsedSeconds int
	Score          *ScoreRecord
	Leaderboard    []LeaderboardEntry
	Winners        *MonthWinners
}

// Game owns one user's in-memory play state for today's level and keeps it in step with
// the remote store: it restores or starts the session, counts elapsed seconds, autosaves,
// and records the score exactly once when the grid is solved.
type Game struct {
	remote Remote
	opts   Options
	logger zerolog.Logger
	rng    Rand

	mu          sync.Mutex
	state       State
	date        string
	month       string
	board       *Board
	elapsed     int
	starting    bool
	finalized   bool
	closed      bool
	score       *ScoreRecord
	leaderboard []LeaderboardEntry
	winners     *MonthWinners
	effects     map[Position]*time.Timer

	// saveMu orders remote writes so the final save is never followed by a stale autosave
	saveMu sync.Mutex

	loops    sync.WaitGroup
	pending  sync.WaitGroup
	done     chan struct{}
	runOnce  sync.Once
	stopOnce sync.Once
}

// NewGame builds a host bound to a remote store
func NewGame(remote Remote, opts Options) *Game {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	if opts.BombEffectDuration <= 0 {
		opts.BombEffectDuration = BombEffectDuration
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Powers == nil {
		opts.Powers = DefaultPowers(1)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = NewRand(uint64(time.Now().UnixNano()))
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Game{
		remote:  remote,
		opts:    opts,
		logger:  logger.With().Str("component", "game").Logger(),
		rng:     rng,
		state:   StateLoading,
		effects: make(map[Position]*time.Timer),
		done:    make(chan struct{}),
	}
}

// Load fetches today's level and session and decides what the host shows: nothing to play,
// the month-end results, the pre-game prompt, a resumed game, or a finished result.
func (g *Game) Load(ctx context.Context) error {
	now := g.opts.Now().In(g.opts.Location)
	date := DateKey(now)

	var (
		level      *Level
		session    *SessionState
		sessionErr error
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		l, err := g.remote.GetLevel(egCtx, date)
		if err != nil {
			return fmt.Errorf("failed to fetch level: %w", err)
		}
		level = l
		return nil
	})
	eg.Go(func() error {
		session, sessionErr = g.remote.GetSession(egCtx, date)
		return nil
	})
	levelErr := eg.Wait()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.date = date
	g.month = MonthKey(now)

	if levelErr != nil || level == nil {
		g.state = StateNoLevel
		g.mu.Unlock()
		if levelErr != nil {
			g.logger.Error().Err(levelErr).Str("play_date", date).Msg("level unavailable")
		}
		return levelErr
	}

	g.board = NewBoard(level, g.opts.Powers)

	if IsFreezeWindow(now) {
		g.state = StateFrozen
		g.board.Lock()
		g.mu.Unlock()
		g.refreshLeaderboard(ctx)
		g.refreshWinners(ctx)
		return nil
	}

	if sessionErr != nil {
		g.state = StateUnstarted
		g.mu.Unlock()
		g.logger.Warn().Err(sessionErr).Str("play_date", date).Msg("session restore failed, starting fresh")
		return nil
	}

	g.restoreLocked(level, session)
	completed := g.state == StateCompleted && !g.hasPendingFinalize()
	g.mu.Unlock()

	if completed {
		g.refreshLeaderboard(ctx)
	}
	return nil
}

func (g *Game) hasPendingFinalize() bool {
	return g.finalized && g.score == nil
}

func (g *Game) restoreLocked(level *Level, session *SessionState) {
	g.state = StateUnstarted
	if session == nil {
		return
	}
	snap := session.Session
	usable := snap != nil && snap.LevelID == level.ID && SameShape(snap.Grid, g.board.grid)

	switch session.Status {
	case SessionCompleted:
		if usable {
			g.board = RestoreBoard(level, snap.Grid, snap.Powers)
			g.elapsed = snap.ElapsedSeconds
		}
		if session.Score != nil {
			g.elapsed = session.Score.CompletionTimeSeconds
		}
		g.board.Lock()
		g.finalized = true
		g.score = session.Score
		if g.score == nil {
			g.score = &ScoreRecord{LevelID: level.ID, PlayDate: g.date, CompletionTimeSeconds: g.elapsed}
		}
		g.state = StateCompleted
	case SessionPlaying:
		if !usable {
			g.logger.Warn().Str("play_date", g.date).Msg("stored progress does not match level, starting fresh")
			return
		}
		g.board = RestoreBoard(level, snap.Grid, snap.Powers)
		g.elapsed = snap.ElapsedSeconds
		g.state = StatePlaying
		g.checkWinLocked()
	}
}

// SameShape reports whether a stored grid has cells exactly where the level needs them
func SameShape(stored, fresh Grid) bool {
	if len(stored) != len(fresh) {
		return false
	}
	for y := range fresh {
		if len(stored[y]) != len(fresh[y]) {
			return false
		}
		for x := range fresh[y] {
			if (stored[y][x] == nil) != (fresh[y][x] == nil) {
				return false
			}
		}
	}
	return true
}

// Start registers the attempt with the remote store and, once it is accepted, starts the
// clock. The store decides the power allowance, so the game adopts the session it recorded.
func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if g.state != StateUnstarted || g.starting {
		g.mu.Unlock()
		return ErrNotStartable
	}
	g.starting = true
	level := g.board.level
	date := g.date
	grid := g.board.Grid()
	g.mu.Unlock()

	err := g.remote.StartSession(ctx, level.ID, grid, nil)
	var (
		session    *SessionState
		sessionErr error
	)
	if err == nil {
		session, sessionErr = g.remote.GetSession(ctx, date)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.starting = false
	if err != nil {
		g.logger.Error().Err(err).Int64("level_id", level.ID).Msg("failed to start session")
		return fmt.Errorf("failed to start session: %w", err)
	}
	g.state = StatePlaying
	g.elapsed = 0

	if sessionErr != nil {
		g.logger.Warn().Err(sessionErr).Str("play_date", date).Msg("could not read started session, keeping local powers")
		return nil
	}
	if session == nil || session.Status != SessionPlaying || session.Session == nil {
		return nil
	}
	snap := session.Session
	if snap.LevelID != level.ID || !SameShape(snap.Grid, g.board.grid) {
		return nil
	}
	g.board = RestoreBoard(level, snap.Grid, snap.Powers)
	g.elapsed = snap.ElapsedSeconds
	g.checkWinLocked()
	return nil
}

// Run starts the one-second clock and the autosave interval. Close stops both.
func (g *Game) Run() {
	g.runOnce.Do(func() {
		g.mu.Lock()
		closed := g.closed
		g.mu.Unlock()
		if closed {
			return
		}
		g.loops.Add(2)
		go g.every(g.opts.TickInterval, g.Tick)
		go g.every(g.opts.AutosaveInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), g.opts.RequestTimeout)
			defer cancel()
			_ = g.Autosave(ctx)
		})
	})
}

func (g *Game) every(interval time.Duration, fn func()) {
	defer g.loops.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Tick advances the clock by one second while the game is being played
func (g *Game) Tick() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StatePlaying {
		g.elapsed++
	}
}

// Autosave pushes the current progress while playing. Failures are logged and returned;
// the next interval is the retry.
func (g *Game) Autosave(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StatePlaying {
		g.mu.Unlock()
		return nil
	}
	grid := g.board.grid.Persisted()
	powers := g.board.Powers()
	elapsed := g.elapsed
	g.mu.Unlock()

	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	// a win between the snapshot and here already saved the final state
	g.mu.Lock()
	playing := g.state == StatePlaying
	g.mu.Unlock()
	if !playing {
		return nil
	}

	if err := g.remote.SaveProgress(ctx, grid, powers, elapsed); err != nil {
		g.logger.Warn().Err(err).Str("play_date", g.date).Int("elapsed", elapsed).Msg("autosave failed")
		return err
	}
	return nil
}

// TypeLetter enters ch at (x, y)
func (g *Game) TypeLetter(x, y int, ch rune) bool {
	return g.edit(func(b *Board) bool { return b.TypeLetter(x, y, ch) })
}

// Backspace clears or steps back from the cursor cell
func (g *Game) Backspace() bool {
	return g.edit(func(b *Board) bool { return b.Backspace() })
}

// SelectCell moves the cursor to (x, y)
func (g *Game) SelectCell(x, y int) bool {
	return g.edit(func(b *Board) bool { return b.SelectCell(x, y) })
}

// SelectNextWordAtSameCell switches to the crossing word at (x, y)
func (g *Game) SelectNextWordAtSameCell(x, y int) bool {
	return g.edit(func(b *Board) bool { return b.SelectNextWordAtSameCell(x, y) })
}

func (g *Game) edit(fn func(*Board) bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.state != StatePlaying {
		return false
	}
	changed := fn(g.board)
	if changed {
		g.checkWinLocked()
	}
	return changed
}

// UsePower activates a power-up. A bomb reveal keeps its effect flag until the effect
// duration passes.
func (g *Game) UsePower(t PowerType) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.state != StatePlaying {
		return false
	}
	pos, ok := g.board.UsePower(t, g.rng)
	if !ok {
		return false
	}
	if t == Bomb {
		g.scheduleEffectClearLocked(pos)
	}
	g.checkWinLocked()
	return true
}

func (g *Game) scheduleEffectClearLocked(pos Position) {
	if old, ok := g.effects[pos]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(g.opts.BombEffectDuration, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.effects[pos] != timer {
			return
		}
		delete(g.effects, pos)
		g.board.ClearBombEffect(pos)
	})
	g.effects[pos] = timer
}

// Results re-runs validation on the current grid. Calling it repeatedly never submits a
// second score.
func (g *Game) Results() []WordResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.board == nil {
		return nil
	}
	res := g.board.Results()
	if g.state == StatePlaying {
		g.checkWinLocked()
	}
	return res
}

func (g *Game) checkWinLocked() {
	if g.finalized || g.closed || g.board == nil || !g.board.IsWon() {
		return
	}
	g.finalized = true
	g.state = StateCompleted
	g.board.Lock()

	final := SessionSnapshot{
		LevelID:        g.board.level.ID,
		PlayDate:       g.date,
		Grid:           g.board.grid.Persisted(),
		Powers:         g.board.Powers(),
		ElapsedSeconds: g.elapsed,
	}
	g.pending.Add(1)
	go g.finalize(final)
}

func (g *Game) finalize(final SessionSnapshot) {
	defer g.pending.Done()
	log := g.logger.With().Str("play_date", final.PlayDate).Int64("level_id", final.LevelID).Logger()

	// each request gets its own deadline so a slow save cannot starve the score
	g.saveMu.Lock()
	saveCtx, cancelSave := context.WithTimeout(context.Background(), g.opts.RequestTimeout)
	if err := g.remote.SaveProgress(saveCtx, final.Grid, final.Powers, final.ElapsedSeconds); err != nil {
		log.Warn().Err(err).Msg("final save failed")
	}
	cancelSave()
	scoreCtx, cancelScore := context.WithTimeout(context.Background(), g.opts.RequestTimeout)
	err := g.remote.SaveScore(scoreCtx, final.LevelID, final.ElapsedSeconds, final.PlayDate)
	cancelScore()
	g.saveMu.Unlock()

	if err != nil {
		// no score is shown; the next Load finds the session unscored and submits again
		log.Error().Err(err).Msg("failed to save score")
		return
	}
	log.Info().Int("seconds", final.ElapsedSeconds).Msg("puzzle completed")

	g.mu.Lock()
	g.score = &ScoreRecord{
		LevelID:               final.LevelID,
		CompletionTimeSeconds: final.ElapsedSeconds,
		PlayDate:              final.PlayDate,
		Points:                ScorePoints(final.ElapsedSeconds),
	}
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), g.opts.RequestTimeout)
	defer cancel()
	g.refreshLeaderboard(ctx)
}

func (g *Game) refreshWinners(ctx context.Context) {
	g.mu.Lock()
	month := g.month
	g.mu.Unlock()

	winners, err := g.remote.GetWinners(ctx, month)
	if err != nil {
		g.logger.Warn().Err(err).Str("month", month).Msg("failed to fetch winners")
		return
	}
	g.mu.Lock()
	g.winners = winners
	g.mu.Unlock()
}

// Flush waits for an in-flight completion to finish talking to the remote store
func (g *Game) Flush() {
	g.pending.Wait()
}

// Close stops the intervals, drops pending effect timers and waits for in-flight work
func (g *Game) Close() {
	g.stopOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		for pos, t := range g.effects {
			t.Stop()
			if g.board != nil {
				g.board.ClearBombEffect(pos)
			}
			delete(g.effects, pos)
		}
		g.mu.Unlock()
		close(g.done)
	})
	g.loops.Wait()
	g.pending.Wait()
}

// State returns the current flow state
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Elapsed returns the play clock in seconds
func (g *Game) Elapsed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.elapsed
}

// View snapshots everything a host needs to render
func (g *Game) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := View{
		State:          g.state,
		Date:           g.date,
		ElapsedSeconds: g.elapsed,
		Leaderboard:    append([]LeaderboardEntry(nil), g.leaderboard...),
	}
	if g.score != nil {
		s := *g.score
		v.Score = &s
	}
	if g.winners != nil {
		w := *g.winners
		w.Entries = append([]LeaderboardEntry(nil), w.Entries...)
		v.Winners = &w
	}
	if g.board == nil {
		return v
	}
	v.Level = g.board.level
	v.Grid = g.board.Grid()
	v.Powers = g.board.Powers()
	v.Results = g.board.Results()
	if p, ok := g.board.Cursor(); ok {
		v.Cursor = &p
	}
	if w, ok := g.board.ActiveWord(); ok {
		v.ActiveWord = &w
	}
	return v
}
