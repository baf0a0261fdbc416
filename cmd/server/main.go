package main // Entry point of the CareFinder API server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/config"
	"github.com/iliyamo/carefinder-api/internal/handler"
	"github.com/iliyamo/carefinder-api/internal/logging"
	"github.com/iliyamo/carefinder-api/internal/metrics"
	"github.com/iliyamo/carefinder-api/internal/middleware"
	"github.com/iliyamo/carefinder-api/internal/queue"
	"github.com/iliyamo/carefinder-api/internal/repository"
	"github.com/iliyamo/carefinder-api/internal/router"
	"github.com/iliyamo/carefinder-api/internal/service"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := logging.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		log.Warn("sentry disabled", zap.Error(err))
	}
	defer logging.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ----- stores -----
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongo, err := repository.NewMongo(connectCtx, cfg.Mongo)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongo.Close(closeCtx)
	}()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Info("redis not configured or unreachable; rate limit and cache disabled")
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, log)
		defer pub.Close()
		events = pub
	}

	// ----- services -----
	hasher, err := utils.NewPasswordHasher(cfg.KDF)
	if err != nil {
		return err
	}
	tokens := utils.NewTokenManager(cfg.Auth)
	users, refresh := mongo.Users(), mongo.Tokens()

	authSvc := service.NewAuthService(users, refresh, hasher, tokens, events, log)
	userSvc := service.NewUserService(users, refresh, hasher, log)

	// ----- http -----
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.HTTP())
	e.Use(middleware.Recover(log))
	e.Use(echomw.Secure())
	e.Use(echomw.CORS())

	router.RegisterRoutes(e, mongo)
	api := router.API(e, cfg.APIVersion)
	router.RegisterAuth(api, handler.NewAuthHandler(authSvc, cfg.RequestTimeout), tokens,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterHospitals(api, handler.NewHospitalHandler(mongo.Hospitals(), cfg.RequestTimeout), tokens,
		middleware.NewRedisCache(cfg.Cache, rdb, log))
	router.RegisterUsers(api, handler.NewUserHandler(userSvc, cfg.RequestTimeout), tokens)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("api", cfg.APIVersion))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
