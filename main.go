package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"authsvc/internal/apperr"
	"authsvc/internal/config"
	"authsvc/internal/database"
	"authsvc/internal/handlers"
	"authsvc/internal/logging"
	"authsvc/internal/middleware"
	"authsvc/internal/notify"
	"authsvc/internal/repositories"
	"authsvc/internal/services"
	"authsvc/pkg/rabbitmq"
)

// otpPurgeInterval is how often expired reset codes are swept.
const otpPurgeInterval = time.Hour

// App is the assembled service: the HTTP app plus the resources it owns.
type App struct {
	Fiber *fiber.App
	Auth  *services.AuthService
	Users *services.UserService
	OTPs  *services.OTPService

	db     *gorm.DB
	mq     *rabbitmq.Client
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewApp connects to the store and the configured mail backend and wires the
// services and routes. Close releases what it opened.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.L()
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		closeDB(db)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{db: db, ctx: ctx, cancel: cancel, logger: logger}

	notifier, err := a.newNotifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	otpRepo := repositories.NewGORMOTPRepository(db)

	// --- Services ---
	sessions := services.NewSessionIssuer(cfg.JWTSecret, cfg.TokenTTL)
	a.OTPs = services.NewOTPService(otpRepo, notifier, cfg.OTPTTL, logger.Named("otp")).WithSendTimeout(cfg.MailSendTimeout)
	a.Auth = services.NewAuthService(userRepo, a.OTPs, sessions, services.NewBcryptHasher(bcrypt.DefaultCost), logger.Named("auth"))
	a.Users = services.NewUserService(userRepo, logger.Named("users"))
	if cfg.AdminEmail != "" {
		a.Auth.WithAdminEmail(cfg.AdminEmail)
		a.bootstrapAdmin(cfg.AdminEmail)
	}

	// --- Fiber App ---
	app := fiber.New(fiber.Config{
		AppName:      "authsvc",
		ErrorHandler: handlers.ErrorHandler(logger.Named("http")),
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendOrigin,
		AllowCredentials: cfg.FrontendOrigin != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", a.handleHealth)

	// --- API Routes ---
	api := app.Group(cfg.APIPrefix)
	handlers.NewAuthHandler(a.Auth, cfg.CookieSecure).RegisterRoutes(api)
	handlers.NewUserHandler(a.Users).RegisterRoutes(api, middleware.AuthRequired(sessions, a.Users))

	a.Fiber = app
	go a.purgeExpiredOTPs(otpPurgeInterval)
	return a, nil
}

func (a *App) newNotifier(cfg config.Config) (notify.Notifier, error) {
	smtpNotifier := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	switch cfg.Notifier {
	case config.NotifierSMTP:
		return smtpNotifier, nil
	case config.NotifierRabbitMQ:
		client, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:             cfg.RabbitMQURL,
			Queue:           cfg.MailQueue,
			DeadLetterQueue: cfg.MailDeadLetters,
		}, a.logger.Named("rabbitmq"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		a.mq = client
		worker := notify.NewMailWorker(client, smtpNotifier, a.logger.Named("mail"))
		if err := worker.Start(a.ctx); err != nil {
			return nil, fmt.Errorf("failed to start mail worker: %w", err)
		}
		return notify.NewQueueNotifier(client), nil
	default:
		return notify.NewLogNotifier(a.logger.Named("mail")), nil
	}
}

// bootstrapAdmin promotes an already registered admin account. If nobody holds
// the address yet, Register grants the role when it is claimed.
func (a *App) bootstrapAdmin(email string) {
	err := a.Users.PromoteAdmin(a.ctx, email)
	switch {
	case err == nil:
	case apperr.Is(err, apperr.CodeUserNotFound):
		a.logger.Info("admin account not registered yet", zap.String("email", email))
	default:
		a.logger.Warn("failed to bootstrap admin", zap.String("email", email), zap.Error(err))
	}
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	if err := a.ping(c.UserContext()); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "degraded",
			"time":     time.Now().Format(time.RFC3339),
			"database": "unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"database": "connected",
	})
}

func (a *App) ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// purgeExpiredOTPs sweeps once immediately and then on every tick until Close.
func (a *App) purgeExpiredOTPs(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		n, err := a.OTPs.PurgeExpired(a.ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			a.logger.Warn("failed to purge expired otps", zap.Error(err))
		case n > 0:
			a.logger.Info("purged expired otps", zap.Int64("count", n))
		}
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops background work and releases the broker and database connections.
func (a *App) Close() {
	a.cancel()
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			a.logger.Warn("error closing RabbitMQ client", zap.Error(err))
		}
	}
	closeDB(a.db)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Port), zap.String("env", cfg.Environment), zap.String("notifier", cfg.Notifier))
		if err := app.Fiber.Listen(cfg.Port); err != nil {
			logger.Error("server stopped", zap.Error(err))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info("shutting down server")

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("error during Fiber shutdown", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}
