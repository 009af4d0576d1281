package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"planora/internal/config"
	"planora/internal/database"
	"planora/internal/middleware"
	"planora/internal/modules/invitation"
	"planora/internal/modules/push"
	"planora/internal/modules/realtime"
	"planora/internal/modules/session"
	jwtsvc "planora/internal/pkg/jwt"
	"planora/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	deviceRepo := repository.NewDeviceTokenRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	jwtService := jwtsvc.New(cfg.JWTSecret, cfg.RefreshTokenPepper)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	rateLimit := middleware.RateLimit(rdb, cfg.RateLimitMax, cfg.RateLimitWindow)

	sessionService := session.NewService(userRepo, refreshRepo, jwtService, cfg.AccessTTL, cfg.RefreshTTL)
	sessionHandler := session.NewHandler(sessionService)

	mailer := invitation.NewDevConsoleMailer(!isProd(cfg.AppEnv))
	invitationService := invitation.NewService(invitationRepo, userRepo, mailer, cfg.InvitationTTL, cfg.CodeTTL)
	invitationHandler := invitation.NewHandler(invitationService, sessionService, cfg.InviteBaseURL)

	provider := push.NewHTTPProvider(cfg.PushAPIURL)
	pushService := push.NewService(deviceRepo, receiptRepo, provider, cfg.PushChunkSize)
	pushHandler := push.NewHandler(pushService)
	reconciler := push.NewReconciler(receiptRepo, deviceRepo, provider, cfg.SweepInterval)

	hub := realtime.NewHub()
	realtimeHandler := realtime.NewHandler(hub, jwtService, userRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go reconciler.Run(ctx)

	r := gin.New()
	r.Use(middleware.ErrorLogger(), middleware.CORS())

	v1 := r.Group("/api/v1")
	{
		sessionHandler.RegisterPublicRoutes(v1, rateLimit)
		invitationHandler.RegisterPublicRoutes(v1, rateLimit)
		realtimeHandler.RegisterRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(jwtService))
		{
			sessionHandler.RegisterProtectedRoutes(protected)
			pushHandler.RegisterProtectedRoutes(protected)

			admin := protected.Group("/")
			admin.Use(middleware.AdminOnly())
			{
				invitationHandler.RegisterAdminRoutes(admin)
				pushHandler.RegisterAdminRoutes(admin)
			}
		}
	}

	srv := &http.Server{
		Addr:    ":" + port(),
		Handler: r,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	hub.Close()
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}

func isProd(appEnv string) bool {
	return appEnv == "prod" || appEnv == "production"
}
