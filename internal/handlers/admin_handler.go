package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"krosswordle/internal/models"
	"krosswordle/internal/puzzle"
	"krosswordle/internal/service"
)

// AdminHandler manages levels, the prize and the monthly announcement
type AdminHandler struct {
	levelService       *service.LevelService
	leaderboardService *service.LeaderboardService
	backupService      *service.BackupService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(levelService *service.LevelService, leaderboardService *service.LeaderboardService, backupService *service.BackupService) *AdminHandler {
	return &AdminHandler{
		levelService:       levelService,
		leaderboardService: leaderboardService,
		backupService:      backupService,
	}
}

type saveLevelRequest struct {
	Date  string                 `json:"date"`
	Words []puzzle.WordPlacement `json:"words"`
}

type prizeRequest struct {
	Prize string `json:"prize"`
}

type notifyRequest struct {
	Month string `json:"month"`
}

type notifyResponse struct {
	Month    string `json:"month"`
	Notified bool   `json:"notified"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

// ListLevels returns levels in the optional ?from= and ?to= range
func (h *AdminHandler) ListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.levelService.ListLevels(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respondWithServiceError(w, err, "failed to list levels")
		return
	}
	if levels == nil {
		levels = []models.Level{}
	}
	respondJSON(w, http.StatusOK, levels)
}

// SaveLevel stores one level from JSON, or a whole YAML level file when the body is YAML
func (h *AdminHandler) SaveLevel(w http.ResponseWriter, r *http.Request) {
	if isYAML(r) {
		n, err := h.levelService.ImportLevels(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			respondWithError(w, statusOrBadRequest(err), err.Error(), "level import failed", err)
			return
		}
		respondJSON(w, http.StatusOK, importResponse{Imported: n})
		return
	}

	var req saveLevelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	level, err := h.levelService.SaveLevel(r.Context(), req.Date, req.Words)
	if err != nil {
		respondWithServiceError(w, err, "failed to save level")
		return
	}
	respondJSON(w, http.StatusOK, level)
}

// DeleteLevel removes an unplayed level
func (h *AdminHandler) DeleteLevel(w http.ResponseWriter, r *http.Request) {
	if err := h.levelService.DeleteLevel(r.Context(), chi.URLParam(r, "date")); err != nil {
		respondWithServiceError(w, err, "failed to delete level")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPrize changes the monthly prize text
func (h *AdminHandler) SetPrize(w http.ResponseWriter, r *http.Request) {
	var req prizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.leaderboardService.SetPrize(r.Context(), req.Prize); err != nil {
		respondWithServiceError(w, err, "failed to set prize")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotifyWinners announces a month's winners, the current month when none is given
func (h *AdminHandler) NotifyWinners(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Month == "" {
		req.Month = h.leaderboardService.CurrentMonth()
	}

	notified, err := h.leaderboardService.NotifyWinners(r.Context(), req.Month)
	if err != nil {
		respondWithServiceError(w, err, "failed to notify winners")
		return
	}
	respondJSON(w, http.StatusOK, notifyResponse{Month: req.Month, Notified: notified})
}

// ExportDatabase streams a JSON backup for download
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	filename := fmt.Sprintf("krosswordle_backup_%s.json", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := h.backupService.ExportToWriter(r.Context(), w); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to export database", "error exporting database", err)
		return
	}
	log.Info().Str("admin", user.Email).Msg("database exported")
}

func isYAML(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return true
	}
	return false
}

// statusOrBadRequest treats unclassified errors as client errors; a level file that
// fails to parse is the uploader's fault
func statusOrBadRequest(err error) int {
	if status := statusForError(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadRequest
}
