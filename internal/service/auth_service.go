package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"krosswordle/internal/credentials"
	"krosswordle/internal/models"
	"krosswordle/internal/repository"
	"krosswordle/internal/security"
	"krosswordle/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrDisplayNameTaken   = errors.New("display name already taken")
	ErrDisplayNameBlocked = errors.New("display name is not allowed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrUserNotFound       = errors.New("user not found")
)

// WordFilter reports whether text contains a blocked word
type WordFilter interface {
	ContainsBadWord(ctx context.Context, text string) (bool, error)
}

// AuthService handles accounts, browser sessions and API tokens
type AuthService struct {
	userRepo        *repository.UserRepository
	filter          WordFilter
	tokens          *security.TokenIssuer
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service. filter may be nil to skip the bad-word check.
func NewAuthService(userRepo *repository.UserRepository, filter WordFilter, tokens *security.TokenIssuer, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		filter:          filter,
		tokens:          tokens,
		sessionDuration: sessionDuration,
	}
}

// Register creates a password account
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := s.checkDisplayName(ctx, displayName, 0); err != nil {
		return nil, err
	}

	existingUser, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.CreateUser(ctx, &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		AvatarURL:    credentials.AvatarURL(email),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Info().Int64("user_id", user.ID).Bool("admin", user.IsAdmin).Msg("user registered")
	return user, nil
}

func (s *AuthService) checkDisplayName(ctx context.Context, name string, userID int64) error {
	if err := validation.ValidateDisplayName(name); err != nil {
		return err
	}
	if s.filter != nil {
		bad, err := s.filter.ContainsBadWord(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check display name: %w", err)
		}
		if bad {
			return ErrDisplayNameBlocked
		}
	}
	taken, err := s.userRepo.DisplayNameTaken(ctx, name, userID)
	if err != nil {
		return err
	}
	if taken {
		return ErrDisplayNameTaken
	}
	return nil
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.newSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (s *AuthService) newSession(ctx context.Context, userID int64) (*models.Session, error) {
	session, err := s.userRepo.CreateSession(ctx, security.GenerateSessionID(), userID, time.Now().Add(s.sessionDuration))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession checks if a session is valid and returns the associated user
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.User, error) {
	session, err := s.userRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		if err := s.userRepo.DeleteSession(ctx, sessionID); err != nil {
			log.Warn().Err(err).Msg("failed to delete expired session")
		}
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.userRepo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.userRepo.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}

// EnsureAdmin makes sure email belongs to an administrator, creating the account with
// password when it does not exist yet
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		name, err := s.pickDisplayName(ctx, "Admin")
		if err != nil {
			return nil, err
		}
		if user, err = s.Register(ctx, email, password, name); err != nil {
			return nil, err
		}
	}
	if !user.IsAdmin {
		if err := s.userRepo.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, err
		}
		user.IsAdmin = true
		log.Info().Int64("user_id", user.ID).Msg("user promoted to admin")
	}
	return user, nil
}

// IssueToken returns a bearer token for API clients such as the terminal player
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	return s.tokens.Issue(user.ID)
}

// AuthenticateToken verifies a bearer token and loads its user
func (s *AuthService) AuthenticateToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, security.ErrInvalidToken
	}
	return user, nil
}

// UpdateDisplayName changes the name shown on the leaderboard
func (s *AuthService) UpdateDisplayName(ctx context.Context, userID int64, displayName string) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	displayName = strings.TrimSpace(displayName)
	if err := s.checkDisplayName(ctx, displayName, userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateProfile(ctx, userID, displayName, user.AvatarURL); err != nil {
		return nil, err
	}
	user.DisplayName = displayName
	return user, nil
}

// OAuthLogin authenticates or creates a user using an OAuth provider. A provider name that
// cannot be used on the leaderboard is replaced with a generated one.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name, avatarURL string) (*models.Session, *models.User, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existingUser, err := s.userRepo.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
		}
		if existingUser != nil {
			if existingUser.OAuthProvider != "" && existingUser.OAuthProvider != provider {
				return nil, nil, ErrEmailTaken
			}
			if existingUser.OAuthProvider == "" {
				if err := s.userRepo.LinkOAuthProvider(ctx, existingUser.ID, provider, subject); err != nil {
					return nil, nil, err
				}
			}
			user = existingUser
		} else {
			displayName, err := s.pickDisplayName(ctx, name)
			if err != nil {
				return nil, nil, err
			}
			if avatarURL == "" {
				avatarURL = credentials.AvatarURL(email)
			}
			user, err = s.userRepo.CreateUser(ctx, &models.User{
				Email:         email,
				DisplayName:   displayName,
				AvatarURL:     avatarURL,
				OAuthProvider: provider,
				OAuthSubject:  subject,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create oauth user: %w", err)
			}
			log.Info().Int64("user_id", user.ID).Str("provider", provider).Msg("oauth user created")
		}
	}

	session, err := s.newSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (s *AuthService) pickDisplayName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name != "" && s.checkDisplayName(ctx, name, 0) == nil {
		return name, nil
	}
	for i := 0; i < 5; i++ {
		generated, err := credentials.GenerateDisplayName()
		if i > 0 {
			generated, err = credentials.GenerateDisplayNameWithSuffix()
		}
		if err != nil {
			return "", fmt.Errorf("failed to generate display name: %w", err)
		}
		if s.checkDisplayName(ctx, generated, 0) == nil {
			return generated, nil
		}
	}
	return "", ErrDisplayNameTaken
}
