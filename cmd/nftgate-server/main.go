package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nftgate/adapters/events"
	"github.com/layer-3/nftgate/adapters/tokenizer"
	"github.com/layer-3/nftgate/config"
	"github.com/layer-3/nftgate/ports"
	"github.com/layer-3/nftgate/service"
	"github.com/layer-3/nftgate/transport/http"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Login decisions go to a redis stream when redis is configured
	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}

		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		defer publisher.Close()

		eventPub = events.NewWatermillPublisher(publisher)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	tk, err := tokenizer.NewJWTTokenizer([]byte(cfg.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to create tokenizer: %w", err)
	}

	verifier := service.NewVerifier(tk, eventPub,
		service.WithSessionTTL(cfg.SessionTTL),
		service.WithMaxChallengeAge(cfg.ChallengeMaxAge),
		service.WithLogger(logger),
	)

	// Setup Gin router
	router := http.SetupRouter(verifier, http.RouterConfig{
		LoginRate:  rate.Limit(cfg.LoginRate),
		LoginBurst: cfg.LoginBurst,
		Sentry:     cfg.SentryDSN != "",
		Logger:     logger,
	})

	srv := &nethttp.Server{
		Addr:              cfg.Addr,
		Handler:           http.WithCORS(router, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("verifier listening", slog.String("addr", cfg.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("verifier stopped")
	return nil
}
