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
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/configs"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/cache"
	"github.com/Keoroanthony/shopnow-api/internal/cart"
	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/events"
	"github.com/Keoroanthony/shopnow-api/internal/handlers"
	"github.com/Keoroanthony/shopnow-api/internal/logger"
	"github.com/Keoroanthony/shopnow-api/internal/notifier"
	"github.com/Keoroanthony/shopnow-api/internal/server"
	"github.com/Keoroanthony/shopnow-api/internal/stats"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.LoadEnv()

	zlog, err := logger.New(cfg.Logger, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck
	zap.ReplaceGlobals(zlog)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Init(cfg.Postgres, zlog); err != nil {
		zlog.Fatal("database init failed", zap.Error(err))
	}
	defer db.Close()

	if err := auth.Init(ctx, cfg.OIDC); err != nil {
		zlog.Fatal("auth init failed", zap.Error(err))
	}
	if !auth.Enabled() {
		zlog.Warn("OIDC_ISSUER not set, login is disabled")
	}

	var cartCache cache.Cache[cart.View] = cache.Nop[cart.View]{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Warn("redis unreachable, cart cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			cartCache = cache.NewRedisCache[cart.View](rdb, "cart", cache.DefaultTTL)
			zlog.Info("cart cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		defer kp.Close()
		publisher = kp
		zlog.Info("order events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var sms *notifier.SMSSender
	if cfg.SMS.APIKey != "" {
		sms = notifier.NewSMSSender(cfg.SMS, zlog)
	}
	var email *notifier.EmailSender
	if cfg.Email.SenderEmail != "" {
		if email, err = notifier.NewEmailSender(ctx, cfg.Email, zlog); err != nil {
			zlog.Warn("email notifications disabled", zap.Error(err))
		}
	}

	router := server.NewRouter(server.Deps{
		Session: cfg.Session,
		Log:     zlog,
		Carts:   cart.NewService(db.DB, cartCache, zlog),
		Reports: stats.NewReporter(db.DB),
		Effects: &handlers.Effects{
			Publisher: publisher,
			Notifier:  notifier.New(sms, email, zlog),
			Log:       zlog,
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
