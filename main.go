package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"crypto-tracker/config"
	"crypto-tracker/database"
	"crypto-tracker/handlers"
	"crypto-tracker/lifecycle"
	"crypto-tracker/logger"
	"crypto-tracker/quotes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}

	path := os.Getenv("CT_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	envOnly, _ := strconv.ParseBool(os.Getenv("CT_ENV_ONLY"))

	cfg, err := config.Load(path, envOnly)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("crypto-tracker stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL.
	db, err := config.InitDB(cfg.DB)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if cfg.DB.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
	}
	store := database.NewStore(db)

	// Quote cache: Redis when configured so snapshots survive restarts.
	var cache quotes.Cache = quotes.NewMemoryCache()
	if cfg.Quotes.Cache == "redis" {
		rdb, err := config.InitRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = quotes.NewRedisCache(rdb, cfg.Quotes.RedisKey)
	}
	if cfg.Quotes.APIKey == "" {
		zl.Warn("COINMARKETCAP_API_KEY is not set; quote refreshes will fail")
	}

	provider := quotes.NewCoinMarketCap(&http.Client{Timeout: cfg.Quotes.Timeout}, cfg.Quotes.BaseURL, cfg.Quotes.APIKey, cfg.Quotes.Convert)
	quoteSvc := &quotes.Service{
		Symbols:  store,
		Provider: provider,
		Cache:    cache,
		Logger:   zl.Named("quotes"),
	}

	scheduler := quotes.NewScheduler(zl.Named("cron"), ctx)
	if cfg.Quotes.RefreshCron != "" {
		if _, err := scheduler.ScheduleRefresh(cfg.Quotes.RefreshCron, quoteSvc); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Quotes.RefreshOnStart {
		go func() {
			if _, err := quoteSvc.Refresh(ctx); err != nil {
				zl.Warn("initial quote refresh failed", zap.Error(err))
			}
		}()
	}

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Auth.JWTSecret == "" {
		zl.Warn("JWT_SECRET is not set; write endpoints are unauthenticated")
	}

	router := handlers.NewRouter(handlers.Deps{
		Store:  store,
		Closer: &lifecycle.Service{Store: store, Logger: zl.Named("lifecycle")},
		Quotes: quoteSvc,
		Auth:   cfg.Auth,
		Logger: zl.Named("http"),
	})

	srv := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		zl.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
