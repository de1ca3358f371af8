package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	_ "akimat/docs"
	"akimat/internal/config"
	"akimat/internal/handlers"
	"akimat/internal/logger"
	"akimat/internal/middleware"
	"akimat/internal/repositories"
	"akimat/internal/routes"
	"akimat/internal/services"
	"akimat/internal/utils"
)

func Run() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Ошибка подключения к БД")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Ошибка закрытия БД")
		}
	}()
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	router, err := NewRouter(cfg, db)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Ошибка инициализации")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, fmt.Sprintf(":%d", cfg.Server.Port), router); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Ошибка запуска сервера")
	}
}

// NewRouter wires repositories, services and handlers on top of db.
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, error) {
	// === Repos ===
	userRepo := repositories.NewUserRepository(db)

	// === Services ===
	tokenService, err := services.NewTokenService(services.TokenConfig{
		Secret:    cfg.Auth.SecretKey,
		Algorithm: cfg.Auth.Algorithm,
		TTL:       cfg.Auth.AccessTokenTTL(),
	}, userRepo)
	if err != nil {
		return nil, err
	}
	logger.Logger.Info().Dur("token_ttl", tokenService.TTL()).Msg("token service ready")

	ncanode := utils.NewNCANodeClient(cfg.NCANode.APIEndpoint, utils.NCANodeOptions{
		Timeout:    cfg.NCANode.Timeout(),
		VerifyOCSP: cfg.NCANode.VerifyOCSP,
		VerifyCRL:  cfg.NCANode.VerifyCRL,
	})

	authService := services.NewAuthService()
	emailService := services.NewEmailService(cfg.Email)
	telegram, err := services.NewTelegramService(cfg.Telegram)
	if err != nil {
		// уведомления не критичны: работаем без Telegram
		logger.Logger.Warn().Err(err).Msg("telegram notifications disabled")
	}

	edsService := services.NewEDSAuthService(ncanode, ncanode, userRepo, tokenService)
	userService := services.NewUserService(userRepo, authService, tokenService, emailService, telegram)

	// === Handlers ===
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}
	authHandler := handlers.NewAuthHandler(edsService, userService)
	userHandler := handlers.NewUserHandler(userService)
	healthHandler := handlers.NewHealthHandler(db)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Component("http")))
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, tokenService, authHandler, userHandler, healthHandler)
	return router, nil
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", addr).Msg("Сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Logger.Info().Msg("Остановка сервера...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
