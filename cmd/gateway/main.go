package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookswap/pkg/apperr"
	"bookswap/pkg/auth"
	"bookswap/pkg/circuitbreaker"
	"bookswap/pkg/config"
	"bookswap/pkg/logging"
	"bookswap/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	userHeader = "X-User-Id"
	userKey    = "userID"
)

var (
	exchangeServiceURL string
	httpClient         *http.Client
	breaker            *circuitbreaker.CircuitBreaker
	tokens             *auth.TokenService
	logger             *slog.Logger
	stats              *metrics.Gateway
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadGateway()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("gateway", cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := setup(cfg, log, reg); err != nil {
		log.Error("gateway setup failed", "error", err)
		os.Exit(1)
	}

	r := newRouter()
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("gateway service starting", "addr", srv.Addr, "exchange", exchangeServiceURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func setup(cfg config.Gateway, log *slog.Logger, reg prometheus.Registerer) error {
	ts, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	tokens = ts
	logger = log
	stats = metrics.NewGateway(reg)
	exchangeServiceURL = strings.TrimRight(cfg.ExchangeServiceURL, "/")
	httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	breaker = circuitbreaker.NewCircuitBreaker("exchange", cfg.BreakerMaxFailures, cfg.BreakerTimeout)
	return nil
}

func newRouter() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api/v1")
	api.POST("/auth/register", registerHandler)
	api.POST("/auth/login", loginHandler)

	// Catalogue and reputation are readable without an account.
	api.GET("/books", forwardPublic)
	api.GET("/books/:bookId", forwardPublic)
	api.GET("/users/:userId", forwardPublic)
	api.GET("/users/:userId/trust", forwardPublic)
	api.GET("/users/:userId/books", forwardPublic)
	api.GET("/users/:userId/ratings", forwardPublic)

	private := api.Group("", requireUser)
	private.GET("/users/me", forwardAsUser)
	private.PUT("/users/me", forwardAsUser)
	private.POST("/users/:userId/ratings", forwardAsUser)
	private.GET("/users/:userId/ratings/check", forwardAsUser)
	private.POST("/books", forwardAsUser)
	private.PUT("/books/:bookId", forwardAsUser)
	private.PATCH("/books/:bookId/status", forwardAsUser)
	private.DELETE("/books/:bookId", forwardAsUser)
	private.GET("/transactions", forwardAsUser)
	private.POST("/transactions", forwardAsUser)
	private.GET("/transactions/:transactionId", forwardAsUser)
	private.PATCH("/transactions/:transactionId", forwardAsUser)

	r.GET("/manage/health", healthCheck)
	return r
}

// requireUser resolves the bearer token to a user id.
func requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		abortUnauthenticated(c, "bearer token is required")
		return
	}
	userID, err := tokens.UserID(raw)
	if err != nil {
		abortUnauthenticated(c, "invalid or expired token")
		return
	}
	c.Set(userKey, userID)
	c.Next()
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
		"kind":    apperr.Unauthenticated,
		"message": message,
	}})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "gateway service is active",
		"breaker": breaker.GetState().String(),
	})
}
