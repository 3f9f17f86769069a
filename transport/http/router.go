package http

import (
	"log/slog"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nftgate/ports"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// RouterConfig tunes the HTTP surface of the verifier
type RouterConfig struct {
	LoginRate  rate.Limit // Zero disables login rate limiting
	LoginBurst int
	Sentry     bool // Report panics to an initialised sentry client
	Logger     *slog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(verifier ports.Verifier, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))
	if cfg.Sentry {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	handlers := NewAuthHandlers(verifier, logger)

	router.GET("/healthz", handlers.Health)

	// Auth routes
	auth := router.Group("/api/auth")
	{
		login := []gin.HandlerFunc{handlers.Login}
		if cfg.LoginRate > 0 {
			login = append([]gin.HandlerFunc{RateLimit(cfg.LoginRate, cfg.LoginBurst)}, login...)
		}
		auth.POST("/login", login...)
		auth.GET("/verify", handlers.Verify)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(verifier))
	{
		api.GET("/dashboard", handlers.Dashboard)
	}

	return router
}

// WithCORS allows browser dapps served from origins to call the verifier
func WithCORS(handler http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(handler)
}
