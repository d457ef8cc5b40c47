package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"krosswordle/internal/puzzle"
	"krosswordle/internal/service"
)

// PuzzleHandler serves the daily puzzle, session lifecycle and leaderboards
type PuzzleHandler struct {
	gameService        *service.GameService
	levelService       *service.LevelService
	leaderboardService *service.LeaderboardService
}

// NewPuzzleHandler creates a new puzzle handler
func NewPuzzleHandler(gameService *service.GameService, levelService *service.LevelService, leaderboardService *service.LeaderboardService) *PuzzleHandler {
	return &PuzzleHandler{
		gameService:        gameService,
		levelService:       levelService,
		leaderboardService: leaderboardService,
	}
}

type startSessionRequest struct {
	LevelID int64               `json:"levelId"`
	Grid    puzzle.Grid         `json:"grid,omitempty"`
	Powers  []puzzle.PowerState `json:"powers,omitempty"`
}

type progressRequest struct {
	Grid           puzzle.Grid         `json:"grid"`
	Powers         []puzzle.PowerState `json:"powers,omitempty"`
	ElapsedSeconds int                 `json:"elapsedSeconds"`
}

type scoreRequest struct {
	LevelID               int64  `json:"levelId"`
	CompletionTimeSeconds int    `json:"completionTimeSeconds"`
	PlayDate              string `json:"playDate"`
}

// stateResponse is everything a client needs to render today in one round trip
type stateResponse struct {
	Date        string                    `json:"date"`
	Level       *puzzle.Level             `json:"level"`
	Session     *puzzle.SessionState      `json:"session"`
	Freeze      service.FreezeStatus      `json:"freeze"`
	Leaderboard []puzzle.LeaderboardEntry `json:"leaderboard"`
}

// State loads today's level, the user's session and the month's leaderboard in parallel
func (h *PuzzleHandler) State(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	resp := stateResponse{Date: h.gameService.Today(), Freeze: h.leaderboardService.Freeze()}

	eg, ctx := errgroup.WithContext(r.Context())
	eg.Go(func() error {
		level, err := h.levelService.GetLevel(ctx, resp.Date)
		if err == nil && level != nil {
			resp.Level = level.Puzzle()
		}
		return err
	})
	eg.Go(func() error {
		state, err := h.gameService.GetSession(ctx, user.ID, resp.Date)
		resp.Session = state
		return err
	})
	eg.Go(func() error {
		entries, err := h.leaderboardService.Leaderboard(ctx, resp.Freeze.Month)
		resp.Leaderboard = entries
		return err
	})
	if err := eg.Wait(); err != nil {
		respondWithServiceError(w, err, "failed to load puzzle state")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetLevel returns the level for ?date=, today by default. No level is 204.
func (h *PuzzleHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.gameService.Today()
	}

	level, err := h.levelService.GetLevel(r.Context(), date)
	if err != nil {
		respondWithServiceError(w, err, "failed to load level")
		return
	}
	if level == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, level.Puzzle())
}

// GetSession reports the user's attempt for ?date=, today by default
func (h *PuzzleHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	state, err := h.gameService.GetSession(r.Context(), user.ID, r.URL.Query().Get("date"))
	if err != nil {
		respondWithServiceError(w, err, "failed to load session")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// StartSession opens today's attempt
func (h *PuzzleHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := GetUserFromContext(r.Context())
	session, err := h.gameService.StartSession(r.Context(), user.ID, req.LevelID, req.Grid, req.Powers)
	if err != nil {
		respondWithServiceError(w, err, "failed to start session")
		return
	}
	respondJSON(w, http.StatusOK, puzzle.SessionState{Status: session.Status, Session: session.Snapshot()})
}

// SaveProgress stores the current grid, powers and clock
func (h *PuzzleHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Grid == nil {
		respondWithError(w, http.StatusBadRequest, "grid is required", "", nil)
		return
	}

	user := GetUserFromContext(r.Context())
	if err := h.gameService.SaveProgress(r.Context(), user.ID, req.Grid, req.Powers, req.ElapsedSeconds); err != nil {
		respondWithServiceError(w, err, "failed to save progress")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveScore completes the attempt
func (h *PuzzleHandler) SaveScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := GetUserFromContext(r.Context())
	record, err := h.gameService.SaveScore(r.Context(), user.ID, req.LevelID, req.CompletionTimeSeconds, req.PlayDate)
	if err != nil {
		respondWithServiceError(w, err, "failed to save score")
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// Leaderboard ranks ?month=, the current month by default
func (h *PuzzleHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboardService.Leaderboard(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		respondWithServiceError(w, err, "failed to load leaderboard")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Freeze reports whether today is the month-end freeze
func (h *PuzzleHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.leaderboardService.Freeze())
}

// Winners returns the podium of ?month=
func (h *PuzzleHandler) Winners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.leaderboardService.Winners(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		respondWithServiceError(w, err, "failed to load winners")
		return
	}
	respondJSON(w, http.StatusOK, winners)
}
