package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"krosswordle/internal/puzzle"
	"krosswordle/internal/security"
	"krosswordle/internal/service"
	"krosswordle/internal/validation"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		ev := log.Warn()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Err(err).Int("status", status).Msg(logMsg)
	}

	respondJSON(w, status, errorBody{Error: userMsg})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return false
	}
	return true
}

// statusForError maps service errors onto HTTP statuses. Unknown errors are internal.
func statusForError(err error) int {
	var validationErr validation.ValidationError
	var levelErr *puzzle.LevelError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &levelErr),
		errors.Is(err, puzzle.ErrEmptyLevel),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidMonth),
		errors.Is(err, service.ErrInvalidProgress),
		errors.Is(err, service.ErrDisplayNameBlocked):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired),
		errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrFrozen):
		return http.StatusForbidden
	case errors.Is(err, service.ErrLevelNotFound),
		errors.Is(err, service.ErrNoSession),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrDisplayNameTaken),
		errors.Is(err, service.ErrSessionCompleted),
		errors.Is(err, service.ErrLevelInUse),
		errors.Is(err, service.ErrLevelNotToday):
		return http.StatusConflict
	case errors.Is(err, service.ErrPuzzleNotSolved):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondWithServiceError writes err with the status statusForError picks. Internal
// errors are logged and hidden from the client.
func respondWithServiceError(w http.ResponseWriter, err error, logMsg string) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		respondWithError(w, status, ErrInternalServerError, logMsg, err)
		return
	}
	respondWithError(w, status, err.Error(), logMsg, nil)
}
