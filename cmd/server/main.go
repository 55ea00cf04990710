package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/safegreen/outreach-engine/internal/api"
	"github.com/safegreen/outreach-engine/internal/config"
	"github.com/safegreen/outreach-engine/internal/gateway"
	"github.com/safegreen/outreach-engine/internal/message"
	"github.com/safegreen/outreach-engine/internal/pkg/distlock"
	"github.com/safegreen/outreach-engine/internal/pkg/logger"
	"github.com/safegreen/outreach-engine/internal/report"
	"github.com/safegreen/outreach-engine/internal/repository/postgres"
	"github.com/safegreen/outreach-engine/internal/service/automation"
	"github.com/safegreen/outreach-engine/internal/service/dedupe"
	"github.com/safegreen/outreach-engine/internal/service/runner"
	"github.com/safegreen/outreach-engine/internal/service/selector"
	"github.com/safegreen/outreach-engine/internal/service/suppression"
	"github.com/safegreen/outreach-engine/internal/service/sweep"
)

// checkPortAvailable verifies that the target port is not already in use,
// so a stale process does not silently answer in our place.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func applyLogging(cfg config.LoggingConfig) {
	switch strings.ToLower(cfg.Level) {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}
	if cfg.RedactPII != nil {
		logger.SetRedactPII(*cfg.RedactPII)
	}
}

func main() {
	log.Println("Starting Safegreen Outreach Engine API server...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyLogging(cfg.Logging)

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		log.Fatalf("Failed to ping database: %v", err)
	}
	cancelPing()
	log.Println("Connected to database")

	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Redis is optional: without it the engine falls back to Postgres
	// advisory locks and in-process cooldowns.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unreachable (%v), continuing with Postgres fallbacks", err)
			rdb = nil
		} else {
			log.Println("Connected to Redis")
		}
	}

	contactRepo := postgres.NewContactRepo(db)
	runRepo := postgres.NewCampaignRunRepo(db)
	dedupeRepo := postgres.NewDedupeRepo(db)
	suppRepo := postgres.NewSuppressionRepo(db)
	sweepRepo := postgres.NewSweepRepo(db)
	autoRepo := postgres.NewAutomationRepo(db)

	dedupeSvc := dedupe.NewService(dedupeRepo, cfg.Dedupe.TTL())
	suppSvc := suppression.NewService(suppRepo)
	selectorSvc := selector.NewService(contactRepo, suppSvc, dedupeSvc)
	renderer := message.NewRenderer()

	var cooldown gateway.Cooldown
	if rdb != nil {
		cooldown = gateway.NewRedisCooldown(rdb, cfg.Dispatch.Cooldown())
	} else {
		cooldown = gateway.NewMemCooldown(cfg.Dispatch.Cooldown())
	}
	sender := gateway.NewSender(cfg.Gateways, nil, cooldown)

	locks := runner.LockFactory(func(key string, ttl time.Duration) distlock.DistLock {
		return distlock.NewLock(rdb, db, key, ttl)
	})
	defaultPacing := time.Duration(cfg.Dispatch.DefaultPacingSeconds) * time.Second
	runnerSvc := runner.NewService(runRepo, selectorSvc, sender, dedupeSvc, suppSvc, renderer, locks, defaultPacing)

	prober := sweep.NewMXProber(cfg.Sweep.ProbeTimeout(), cfg.Sweep.MXCacheTTL())
	sweepSvc := sweep.NewService(sweepRepo, contactRepo, suppSvc, prober)
	autoSvc := automation.NewService(autoRepo, cfg.Automation.StartTime, defaultPacing)

	handlers := api.NewHandlers(runnerSvc, autoSvc, sweepSvc, suppSvc, report.NewExporter())
	server := api.NewServer(cfg.Server, handlers)

	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	go func() {
		log.Printf("API server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
