package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollcall/internal/cache"
	"rollcall/internal/config"
	"rollcall/internal/directory"
	"rollcall/internal/ledger"
	"rollcall/internal/queue"
	"rollcall/internal/storage"
	"rollcall/internal/storage/postgres"
	"rollcall/internal/storage/sqlite"
	"rollcall/internal/store"
)

// Worker consumes mark events and rebuilds the dashboard summary for
// the affected day, so the cache is warm before the next portal load.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var (
		port storage.Port
		err  error
	)
	switch cfg.StorageBackend {
	case "postgres":
		var db *store.DB
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err == nil {
			port = postgres.New(db.Client)
		}
	default:
		port, err = sqlite.Open(cfg.SQLitePath)
	}
	if err != nil {
		log.Fatalf("storage connect failed: %v", err)
	}
	defer port.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	summaryCache := cache.New(redisClient.Client, cfg.CacheTTL)
	dir := directory.NewService(port, summaryCache)
	led := ledger.NewService(port, dir, summaryCache, cfg.Location())

	q := queue.NewRedisQueue(redisClient.Client, "rollcall:marks")
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for mark events...")
	for msg := range messages {
		if msg.Type != "mark" {
			continue
		}

		date := string(msg.Body)
		msgCtx, msgCancel := context.WithTimeout(ctx, 5*time.Second)
		sum, err := led.DashboardSummary(msgCtx, date)
		msgCancel()
		if err != nil {
			log.Printf("summary rebuild for %s failed: %v", date, err)
			continue
		}
		log.Printf("summary %s: %d/%d present (%d%%)", date, sum.Present, sum.Total, sum.Rate)
	}

	log.Println("worker stopped")
}
