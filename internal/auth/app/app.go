package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/deckside/deckside/internal/auth/http"
	"github.com/deckside/deckside/internal/auth/notify"
	"github.com/deckside/deckside/internal/auth/service"
	"github.com/deckside/deckside/internal/auth/store"
	"github.com/deckside/deckside/internal/auth/store/drivers/sqlite"
	"github.com/deckside/deckside/pkg/cryptox"
	"github.com/deckside/deckside/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	mailer notify.Mailer

	registrationService *service.RegistrationService
	verificationService *service.VerificationService
	sessionService      *service.SessionService
	invitationService   *service.InvitationService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "deckside-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initMailer()
	app.initServices()

	// Seed the first admin account when configured and the user table is
	// empty. Every other account comes in through an invitation.
	if err := app.bootstrapService.EnsureAdmin(context.Background(), app.logger); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"env", app.cfg.Env,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initMailer selects the mail relay client, or the logging mailer when no
// relay is configured (local development).
func (app *Application) initMailer() {
	if app.cfg.MailerURL == "" {
		app.logger.Info("no mail relay configured, emails will be logged")
		app.mailer = &notify.LogMailer{
			Logger: app.logger,
			AppURL: app.cfg.AppBaseURL,
		}
		return
	}

	app.mailer = &notify.HTTPMailer{
		BaseURL: app.cfg.MailerURL,
		AppURL:  app.cfg.AppBaseURL,
		Tokens: &notify.ServiceTokenSource{
			Secret:   []byte(app.cfg.MailerTokenSecret),
			Issuer:   "deckside-auth",
			Audience: "deckside-mailer",
			TTL:      5 * time.Minute,
			Cache:    &notify.TokenCache{},
		},
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	tokens := &service.TokenIssuer{}

	app.registrationService = &service.RegistrationService{
		Store:      app.db,
		Tokens:     tokens,
		Mailer:     app.mailer,
		AutoVerify: app.cfg.AutoVerify(),
	}
	app.verificationService = &service.VerificationService{
		Store:  app.db,
		Tokens: tokens,
	}
	app.sessionService = &service.SessionService{
		Store:  app.db,
		Tokens: tokens,
	}
	app.invitationService = &service.InvitationService{
		Store:  app.db,
		Tokens: tokens,
		Mailer: app.mailer,
	}
	app.bootstrapService = &service.BootstrapService{
		Store:    app.db,
		Email:    app.cfg.BootstrapAdminEmail,
		Password: app.cfg.BootstrapAdminPassword,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	cookies := httpapi.CookieConfig{
		Name:   app.cfg.SessionCookieName,
		Secure: app.cfg.SecureCookies(),
	}

	router := httpapi.NewRouter(app.db, cookies, app.logger)
	router.RegistrationService = app.registrationService
	router.VerificationService = app.verificationService
	router.SessionService = app.sessionService
	router.InvitationService = app.invitationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
