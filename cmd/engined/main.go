package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/azit-engine/config"
	"github.com/d60-Lab/azit-engine/internal/api"
	"github.com/d60-Lab/azit-engine/internal/api/handler"
	"github.com/d60-Lab/azit-engine/internal/engage"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/notify"
	"github.com/d60-Lab/azit-engine/internal/session"
	"github.com/d60-Lab/azit-engine/internal/store"
	"github.com/d60-Lab/azit-engine/pkg/database"
	"github.com/d60-Lab/azit-engine/pkg/logger"
	"github.com/d60-Lab/azit-engine/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, "azit-engine", cfg.Trace.Endpoint)
	if err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	} else {
		defer func() { _ = shutdownTracing(ctx) }()
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", zap.Error(err))
		os.Exit(1)
	}
	ledger, err := store.NewReadLedger(db)
	if err != nil {
		logger.Error("read ledger init failed", zap.Error(err))
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
	}

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, cfg.Gateway.RateLimit, cfg.Gateway.Burst)
	if cfg.Gateway.Token != "" {
		if session.TokenUsable(cfg.Gateway.Token) {
			gw.SetToken(cfg.Gateway.Token)
		} else {
			// 过期的 token 不带上，直接走匿名
			logger.Warn("gateway token expired, staying anonymous")
		}
	}
	sess := session.New()
	// 启动时探测会话；匿名也允许运行（只读模式）
	if err := sess.Probe(ctx, gw); err != nil {
		logger.Info("anonymous mode", zap.Error(err))
	}

	reg := engage.NewRegistry()
	cache := engage.NewCountCache(rdb, 10*time.Minute)
	rec := engage.NewReconciler(gw, sess, reg, cache)

	poller := notify.NewPoller(gw, sess, ledger, cfg.Notify.PollInterval)
	if sess.Authenticated() {
		poller.Start()
	}
	defer poller.Stop()

	h := handler.New(gw, sess, rec, poller)
	router := api.NewRouter(h, cfg.Server.Mode)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("engine listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
