package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/middlewares"
	"bitbucket.org/mmdatafocus/resto_backend/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = "8080"

var tracer = otel.Tracer("resto-backend")

// tracingMiddleware opens a server span per request; the otelgorm plugin
// parents its query spans under it.
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Request.Method + " " + c.FullPath()
		ctx, span := tracer.Start(c.Request.Context(), name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT_2")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(tracingMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func registerRoutes(r *gin.Engine) {
	r.POST("/auth/login", loginHandler())
	r.POST("/auth/register", registerBusinessHandler())

	api := r.Group("/api", middlewares.RequireAuth())

	api.POST("/auth/logout", logoutHandler())
	api.POST("/auth/change-password", changePasswordHandler())

	api.GET("/users", listUsersHandler())
	api.POST("/users", createUserHandler())
	api.GET("/users/:id", getUserHandler())
	api.PUT("/users/:id", updateUserHandler())
	api.DELETE("/users/:id", deleteUserHandler())

	api.GET("/business", getBusinessHandler())
	api.PUT("/business", updateBusinessHandler())

	api.GET("/currencies", listCurrenciesHandler())
	api.POST("/currencies", createCurrencyHandler())
	api.GET("/currencies/:id", getCurrencyHandler())

	api.GET("/categories", listCategoriesHandler())
	api.POST("/categories", createCategoryHandler())
	api.GET("/categories/:id", getCategoryHandler())
	api.PUT("/categories/:id", updateCategoryHandler())
	api.DELETE("/categories/:id", deleteCategoryHandler())
	api.PATCH("/categories/:id/active", toggleCategoryHandler())

	api.GET("/units", listUnitsHandler())
	api.POST("/units", createUnitHandler())
	api.GET("/units/:id", getUnitHandler())
	api.PUT("/units/:id", updateUnitHandler())
	api.DELETE("/units/:id", deleteUnitHandler())
	api.PATCH("/units/:id/active", toggleUnitHandler())

	api.GET("/products", listProductsHandler())
	api.POST("/products", createProductHandler())
	api.GET("/products/:id", getProductHandler())
	api.PUT("/products/:id", updateProductHandler())
	api.DELETE("/products/:id", deleteProductHandler())
	api.PATCH("/products/:id/active", toggleProductHandler())
	api.GET("/products/:id/availability", productAvailabilityHandler())
	api.GET("/products/availability", availabilityHandler())

	api.POST("/uploads/images", uploadSingleImageHandler())
	api.POST("/uploads/images/batch", uploadMultipleImagesHandler())
	api.DELETE("/uploads/images", removeImageHandler())
	api.POST("/uploads/sign", signUploadHandler())

	api.GET("/suppliers", listSuppliersHandler())
	api.POST("/suppliers", createSupplierHandler())
	api.GET("/suppliers/:id", getSupplierHandler())
	api.PUT("/suppliers/:id", updateSupplierHandler())
	api.DELETE("/suppliers/:id", deleteSupplierHandler())
	api.PATCH("/suppliers/:id/active", toggleSupplierHandler())
	api.GET("/suppliers/:id/outstanding", supplierOutstandingHandler())

	api.GET("/customers", listCustomersHandler())
	api.POST("/customers", createCustomerHandler())
	api.GET("/customers/:id", getCustomerHandler())
	api.PUT("/customers/:id", updateCustomerHandler())
	api.DELETE("/customers/:id", deleteCustomerHandler())
	api.PATCH("/customers/:id/active", toggleCustomerHandler())
	api.GET("/customers/:id/outstanding", customerOutstandingHandler())

	api.GET("/tables", listTablesHandler())
	api.POST("/tables", createTableHandler())
	api.GET("/tables/:id", getTableHandler())
	api.PUT("/tables/:id", updateTableHandler())
	api.DELETE("/tables/:id", deleteTableHandler())
	api.PATCH("/tables/:id/active", toggleTableHandler())
	api.POST("/tables/:id/status", setTableStatusHandler())

	api.GET("/purchase-orders", listPurchaseOrdersHandler())
	api.POST("/purchase-orders", createPurchaseOrderHandler())
	api.GET("/purchase-orders/:id", getPurchaseOrderHandler())
	api.PUT("/purchase-orders/:id", updatePurchaseOrderHandler())
	api.POST("/purchase-orders/:id/approve", approvePurchaseOrderHandler())
	api.POST("/purchase-orders/:id/cancel", cancelPurchaseOrderHandler())

	api.GET("/inventory-entries", listInventoryEntriesHandler())
	api.POST("/inventory-entries", createInventoryEntryHandler())
	api.GET("/inventory-entries/:id", getInventoryEntryHandler())
	api.DELETE("/inventory-entries/:id", deleteInventoryEntryHandler())

	api.GET("/inventory/movements", listMovementsHandler())
	api.POST("/inventory/adjustments", createAdjustmentHandler())
	api.GET("/inventory/balance/:productId", productBalanceHandler())
	api.POST("/inventory/rebuild", rebuildStockHandler())

	api.GET("/sales-orders", listSalesOrdersHandler())
	api.POST("/sales-orders", createSalesOrderHandler())
	api.GET("/sales-orders/:id", getSalesOrderHandler())
	api.PUT("/sales-orders/:id", updateSalesOrderHandler())
	api.POST("/sales-orders/:id/confirm", confirmSalesOrderHandler())
	api.POST("/sales-orders/:id/complete", completeSalesOrderHandler())
	api.POST("/sales-orders/:id/cancel", cancelSalesOrderHandler())

	api.GET("/waste-entries", listWasteEntriesHandler())
	api.POST("/waste-entries", createWasteEntryHandler())
	api.GET("/waste-entries/:id", getWasteEntryHandler())

	api.GET("/bills", listBillsHandler())
	api.POST("/bills", createBillHandler())
	api.GET("/bills/:id", getBillHandler())
	api.POST("/bills/:id/void", voidBillHandler())

	api.GET("/customer-payments", listCustomerPaymentsHandler())
	api.POST("/customer-payments", createCustomerPaymentHandler())
	api.GET("/customer-payments/:id", getCustomerPaymentHandler())

	api.GET("/supplier-payments", listSupplierPaymentsHandler())
	api.POST("/supplier-payments", createSupplierPaymentHandler())
	api.GET("/supplier-payments/:id", getSupplierPaymentHandler())

	api.GET("/reports/stock", stockReportHandler())
	api.GET("/reports/ap-aging", apAgingReportHandler())
	api.GET("/reports/ar-aging", arAgingReportHandler())
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// Increment the request count and check against the limit.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count > rl.limit {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	c.Next()
}
