package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/config"
	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/handler"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/repository/cache"
	"github.com/dealdesk/dealdesk-backend/internal/repository/postgres"
	"github.com/dealdesk/dealdesk-backend/internal/repository/storage"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/dealdesk/dealdesk-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(pool)
	workspaceRepo := postgres.NewWorkspaceRepository(pool)
	inviteRepo := postgres.NewInviteRepository(pool)
	dealRepo := postgres.NewDealRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	membershipRepo, closeCache := newMembershipRepository(cfg, postgres.NewMembershipRepository(pool))
	defer closeCache()

	imageService := newImageService(context.Background(), cfg)

	// WebSocket hub
	hub := websocket.NewHub()

	// Initialize services
	notificationService := service.NewNotificationService(notificationRepo)
	notificationService.SetEventPublisher(hub)
	authService := service.NewAuthService(userRepo, workspaceRepo, membershipRepo)
	workspaceService := service.NewWorkspaceService(workspaceRepo, imageService)
	membershipService := service.NewMembershipService(membershipRepo, workspaceRepo, notificationService)
	membershipService.SetEventPublisher(hub)
	inviteService := service.NewInviteService(inviteRepo, membershipRepo, userRepo, workspaceRepo, notificationService)
	inviteService.SetEventPublisher(hub)
	dealService := service.NewDealService(dealRepo, membershipRepo)
	dealService.SetEventPublisher(hub)

	// One Auth0 validator (and JWKS cache) serves REST and websocket handshakes
	tokenValidator, err := middleware.NewAuth0Validator(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Auth0 token validator")
	}
	authMiddleware := middleware.NewAuthMiddleware(tokenValidator)
	wsValidator := websocket.NewJWTValidator(tokenValidator, authService)

	inviteLimiter := middleware.NewRateLimiterWithConfig(cfg.InviteRateLimit, 0)
	defer inviteLimiter.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.RequestValidator{}

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.WorkspaceHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	e.Use(middleware.RequestLogger())
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, authService, handler.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Workspace:     handler.NewWorkspaceHandler(workspaceService),
		Member:        handler.NewMemberHandler(membershipService),
		Invite:        handler.NewInviteHandler(inviteService, authService),
		Deal:          handler.NewDealHandler(dealService),
		Notification:  handler.NewNotificationHandler(notificationService, authService),
		WebSocket:     handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins),
		InviteLimiter: inviteLimiter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newMembershipRepository puts the redis cache in front of repo when
// REDIS_URL is set. The returned func releases the redis client.
func newMembershipRepository(cfg *config.Config, repo domain.MembershipRepository) (domain.MembershipRepository, func()) {
	if cfg.RedisURL == "" {
		return repo, func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		// The cache falls through to postgres on redis errors, so keep going
		log.Warn().Err(err).Msg("Redis unreachable at startup")
	}

	log.Info().Dur("ttl", cfg.MembershipCacheTTL).Msg("Membership cache enabled")
	return cache.NewMembershipRepository(repo, client, cfg.MembershipCacheTTL), func() { _ = client.Close() }
}

// newImageService wires logo storage for the configured driver. Without one,
// logo uploads answer 503.
func newImageService(ctx context.Context, cfg *config.Config) *service.ImageService {
	switch cfg.StorageDriver {
	case config.StorageDriverS3:
		s3Storage, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("S3 storage initialized")
		return service.NewImageService(s3Storage)
	case config.StorageDriverMinIO:
		minioStorage, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MinIO storage")
		}
		log.Info().Str("bucket", cfg.MinIO.BucketName).Msg("MinIO storage initialized")
		return service.NewImageService(minioStorage)
	}

	log.Warn().Msg("No storage driver configured, logo uploads disabled")
	return service.NewImageService(nil)
}
