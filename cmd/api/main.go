package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/cache"
	"rollcall/internal/config"
	"rollcall/internal/directory"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/ledger"
	"rollcall/internal/queue"
	"rollcall/internal/scanclient"
	"rollcall/internal/storage"
	"rollcall/internal/storage/memory"
	"rollcall/internal/storage/postgres"
	"rollcall/internal/storage/sqlite"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// openStorage picks the storage adapter from config. All three honor
// the same port contract; only the persistence medium differs.
func openStorage(ctx context.Context, cfg config.App) (storage.Port, error) {
	switch cfg.StorageBackend {
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		adapter := postgres.New(db.Client)
		if err := adapter.Migrate(ctx); err != nil {
			return nil, err
		}
		return adapter, nil
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.Open(cfg.SQLitePath)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	port, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("storage backend: %s", cfg.StorageBackend)

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	summaryCache := cache.New(redisClient.Client, cfg.CacheTTL)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:marks")
	}

	dir := directory.NewService(port, summaryCache)
	led := ledger.NewService(port, dir, summaryCache, cfg.Location())

	if cfg.SeedDefaults {
		if err := dir.SeedDefaults(ctx); err != nil {
			log.Printf("warning: seed defaults failed: %v", err)
		}
	}

	var scan *scanclient.Client
	if !cfg.ScanSkip && cfg.ScanServiceURL != "" {
		scan = scanclient.New(cfg.ScanServiceURL, 15*time.Second)
		log.Printf("scan service: %s", cfg.ScanServiceURL)
	} else {
		log.Println("scan service disabled (SCAN_SKIP or no SCAN_SERVICE_URL)")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := port.Ping(c.Request.Context()) == nil
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	handler.New(dir, led, scan, q).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
