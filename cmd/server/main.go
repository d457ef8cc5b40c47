package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"

	"krosswordle/internal/config"
	"krosswordle/internal/database"
	"krosswordle/internal/handlers"
	"krosswordle/internal/metrics"
	"krosswordle/internal/repository"
	"krosswordle/internal/security"
	"krosswordle/internal/service"
)

const (
	jobInterval     = time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	startup := handlers.NewStartupStatus()
	rec := metrics.NewRecorder()

	startup.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	startup.CompleteStep(handlers.StepDatabase)
	log.Info().Str("type", cfg.DatabaseType).Msg("database connection established")

	startup.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(ctx, cfg.MigrationsPath); err != nil {
		return err
	}
	startup.CompleteStep(handlers.StepMigrations)
	log.Info().Msg("migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Initialize services
	startup.SetCurrentStep(handlers.StepServices)
	clock := service.Clock{Location: cfg.Location()}
	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenDuration)
	authService := service.NewAuthService(userRepo, db, tokens, cfg.SessionDuration)
	levelService := service.NewLevelService(levelRepo)
	gameService := service.NewGameService(db, clock, cfg.PowerUses, rec)
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		return err
	}
	leaderboardService := service.NewLeaderboardService(scoreRepo, settingsRepo, userRepo, emailService, cfg.AdminEmail, clock, rec)
	backupService := service.NewBackupService(db)

	if err := bootstrap(ctx, cfg, db, startup, authService, settingsRepo); err != nil {
		return err
	}
	startup.CompleteStep(handlers.StepServices)

	oauthProviders := map[string]handlers.OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
	}

	csrf := security.NewCSRFGenerator(cfg.CSRFSecret)
	loginLimiter := security.NewRateLimiter(10, time.Minute)
	defer loginLimiter.Stop()

	router := handlers.NewRouter(handlers.Handlers{
		Middleware:   handlers.NewMiddleware(authService, csrf, rec),
		Auth:         handlers.NewAuthHandler(authService, csrf, oauthProviders, cfg.OAuthRedirectBaseURL),
		Puzzle:       handlers.NewPuzzleHandler(gameService, levelService, leaderboardService),
		Admin:        handlers.NewAdminHandler(levelService, leaderboardService, backupService),
		Startup:      startup,
		Metrics:      rec,
		LoginLimiter: loginLimiter,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		every(egCtx, jobInterval, func(ctx context.Context) {
			n, err := authService.CleanupExpiredSessions(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to clean up expired sessions")
				return
			}
			log.Debug().Int64("removed", n).Msg("expired sessions cleaned up")
		})
		return nil
	})
	eg.Go(func() error {
		every(egCtx, jobInterval, func(ctx context.Context) {
			if _, err := leaderboardService.NotifyIfMonthEnd(ctx); err != nil {
				log.Error().Err(err).Msg("failed to notify monthly winners")
			}
		})
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	startup.MarkReady()
	return eg.Wait()
}

// bootstrap seeds the blocked-word list, the configured admin and the default prize.
// A failed bad-word download is not fatal; names are then only checked for shape.
func bootstrap(ctx context.Context, cfg *config.Config, db *database.DB, startup *handlers.StartupStatus,
	authService *service.AuthService, settingsRepo *repository.SettingsRepository) error {
	startup.SetCurrentStep(handlers.StepBadWords)
	if err := db.SeedBadWords(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to seed bad words filter")
	}
	startup.CompleteStep(handlers.StepBadWords)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return err
		}
	}

	if cfg.MonthlyPrize != "" {
		prize, err := settingsRepo.MonthlyPrize(ctx)
		if err != nil {
			return err
		}
		if prize == "" {
			if err := settingsRepo.SetMonthlyPrize(ctx, cfg.MonthlyPrize); err != nil {
				return err
			}
		}
	}
	return nil
}

// every runs fn immediately and then on each tick until ctx is done
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
