package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bookswap/pkg/account"
	"bookswap/pkg/apperr"
	"bookswap/pkg/audit"
	"bookswap/pkg/catalog"
	"bookswap/pkg/config"
	"bookswap/pkg/database"
	"bookswap/pkg/exchange"
	"bookswap/pkg/logging"
	"bookswap/pkg/metrics"
	"bookswap/pkg/queue"
	"bookswap/pkg/rating"
	"bookswap/pkg/store"
	"bookswap/pkg/trust"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const userHeader = "X-User-Id"

var (
	db          *gorm.DB
	logger      *slog.Logger
	stores      *store.Store
	exchanges   *exchange.Service
	trustEngine *trust.Engine
	ratings     *rating.Service
	books       *catalog.Service
	accounts    *account.Service
	auditor     *audit.Auditor
	stats       *metrics.Exchange
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadExchange()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("exchange", cfg.LogLevel)
	log.Info("starting exchange service")

	conn, err := database.InitExchangeDB(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Ping(context.Background(), conn); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	log.Info("database ping successful")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	setup(conn, log, reg, cfg)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.AuditSchedule, runAudit); err != nil {
		log.Error("invalid audit schedule", "schedule", cfg.AuditSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	server := newRouter()
	server.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("exchange service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	<-scheduler.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// setup wires the services around conn. Tests call it with an in-memory
// database.
func setup(conn *gorm.DB, log *slog.Logger, reg prometheus.Registerer, cfg config.Exchange) {
	db = conn
	logger = log
	stats = metrics.NewExchange(reg)

	stores = store.New(conn)
	exchanges = exchange.NewService(stores)
	trustEngine = trust.NewEngine(stores, stores)
	ratings = rating.NewService(stores)
	books = catalog.NewService(stores)
	accounts = account.NewService(stores)
	auditor = audit.New(stores, queue.NewQueue(), log, audit.Options{
		MaxRetries: cfg.RepairMaxRetries,
		Backoff:    cfg.RepairBackoff,
		Metrics:    stats,
	})
}

func newRouter() *gin.Engine {
	server := gin.Default()

	api := server.Group("/api/v1")
	api.POST("/users", registerUser)
	api.POST("/users/authenticate", authenticateUser)
	api.GET("/users/me", getMyProfile)
	api.PUT("/users/me", updateMyProfile)
	api.GET("/users/:userId", getUser)
	api.GET("/users/:userId/trust", getTrustScore)
	api.GET("/users/:userId/books", getOwnerBooks)
	api.GET("/users/:userId/ratings", getRatings)
	api.POST("/users/:userId/ratings", rateUser)
	api.GET("/users/:userId/ratings/check", checkRating)

	api.GET("/books", listBooks)
	api.POST("/books", createBook)
	api.GET("/books/:bookId", getBook)
	api.PUT("/books/:bookId", updateBook)
	api.PATCH("/books/:bookId/status", setBookStatus)
	api.DELETE("/books/:bookId", deleteBook)

	api.GET("/transactions", listTransactions)
	api.POST("/transactions", createTransaction)
	api.GET("/transactions/:transactionId", getTransaction)
	api.PATCH("/transactions/:transactionId", transitionTransaction)

	server.GET("/manage/health", healthCheck)
	return server
}

func runAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := auditor.Run(ctx); err != nil {
		logger.Error("scheduled audit failed", "error", err)
	}
}

func healthCheck(c *gin.Context) {
	if err := database.Ping(c.Request.Context(), db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "UP",
		"details":        "exchange service is active",
		"pendingRepairs": len(auditor.Pending()),
	})
}

// actor returns the caller id set by the gateway, answering 401 when it is
// missing.
func actor(c *gin.Context) (string, bool) {
	id := c.GetHeader(userHeader)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{
			"kind":    apperr.Unauthenticated,
			"message": userHeader + " header is required",
		}})
		return "", false
	}
	return id, true
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.InvalidState, apperr.InvalidTransition, apperr.Conflict:
		return http.StatusConflict
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": gin.H{
		"kind":    kind,
		"message": apperr.Message(err),
	}})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperr.Wrap(apperr.InvalidInput, err, "invalid request body"))
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil || size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
