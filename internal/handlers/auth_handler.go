package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"krosswordle/internal/models"
	"krosswordle/internal/security"
	"krosswordle/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	csrf                 *security.CSRFGenerator
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, csrf *security.CSRFGenerator, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string) *AuthHandler {
	if oauthProviders == nil {
		oauthProviders = map[string]OAuthProvider{}
	}
	return &AuthHandler{
		authService:          authService,
		csrf:                 csrf,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

// userView is the public shape of an account
type userView struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	IsAdmin     bool   `json:"isAdmin"`
}

type meResponse struct {
	User      userView `json:"user"`
	CSRFToken string   `json:"csrfToken,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsAdmin:     u.IsAdmin,
	}
}

func (h *AuthHandler) me(user *models.User, sessionID string) meResponse {
	resp := meResponse{User: newUserView(user)}
	if sessionID != "" {
		// the ID is never empty here, so GenerateToken cannot fail
		resp.CSRFToken, _ = h.csrf.GenerateToken(sessionID)
	}
	return resp
}

// Register creates a password account and signs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.authService.Register(r.Context(), req.Email, req.Password, req.DisplayName); err != nil {
		respondWithServiceError(w, err, "registration failed")
		return
	}

	// Auto-login after registration
	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, err, "login after registration failed")
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	respondJSON(w, http.StatusCreated, h.me(user, session.ID))
}

// Login checks the password and starts a cookie session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, err, "login failed")
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	respondJSON(w, http.StatusOK, h.me(user, session.ID))
}

// Token exchanges a password for a bearer token, for clients that cannot keep cookies
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, err, "token login failed")
		return
	}
	// the token replaces the browser session Login opened
	if err := h.authService.Logout(r.Context(), session.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to drop session after token login")
	}

	token, expiresAt, err := h.authService.IssueToken(user)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to issue token", err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

// Logout ends the cookie session. Bearer tokens simply expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := GetSessionIDFromContext(r.Context()); sessionID != "" {
		if err := h.authService.Logout(r.Context(), sessionID); err != nil {
			log.Warn().Err(err).Msg("failed to delete session")
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user and, for cookie sessions, the CSRF token
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	respondJSON(w, http.StatusOK, h.me(user, GetSessionIDFromContext(r.Context())))
}

// UpdateProfile changes the display name
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := GetUserFromContext(r.Context())
	updated, err := h.authService.UpdateDisplayName(r.Context(), user.ID, req.DisplayName)
	if err != nil {
		respondWithServiceError(w, err, "profile update failed")
		return
	}
	respondJSON(w, http.StatusOK, h.me(updated, GetSessionIDFromContext(r.Context())))
}
