package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tovarim/mealrota/internal/database"
	"github.com/tovarim/mealrota/internal/logging"
	"github.com/tovarim/mealrota/internal/mirror"
	"github.com/tovarim/mealrota/internal/notify"
	"github.com/tovarim/mealrota/internal/remote"
	"github.com/tovarim/mealrota/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("MEALROTA_LOG_LEVEL"), os.Getenv("MEALROTA_LOG_FORMAT"))

	port := os.Getenv("MEALROTA_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("MEALROTA_DB_PATH")
	if dbPath == "" {
		dbPath = "mealrota.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	baseURL := os.Getenv("MEALROTA_TABLE_BASE_URL")
	if baseURL == "" {
		log.Fatal("MEALROTA_TABLE_BASE_URL is required")
	}
	tables := remote.NewHTTPClient(remote.Config{
		BaseURL: baseURL,
		Token:   os.Getenv("MEALROTA_TABLE_TOKEN"),
	})

	// Without bucket credentials mirrors live in memory only; restarts
	// start cold but nothing else changes.
	var mirrors mirror.Store = mirror.NewMem()
	if bucket := os.Getenv("MEALROTA_S3_BUCKET"); bucket != "" {
		mirrors = mirror.NewS3Store(mirror.Config{
			Endpoint:  os.Getenv("MEALROTA_S3_ENDPOINT"),
			Bucket:    bucket,
			Region:    os.Getenv("MEALROTA_S3_REGION"),
			AccessKey: os.Getenv("MEALROTA_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("MEALROTA_S3_SECRET_KEY"),
			Prefix:    os.Getenv("MEALROTA_S3_PREFIX"),
		})
	}

	cacheTTL := 5 * time.Minute
	if v := os.Getenv("MEALROTA_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid MEALROTA_CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}

	srv := server.New(db, tables, mirrors, server.Config{
		CacheTTL:     cacheTTL,
		ReminderSpec: os.Getenv("MEALROTA_REMINDER_CRON"),
		Push: notify.Config{
			VAPIDPublicKey:  os.Getenv("MEALROTA_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("MEALROTA_VAPID_PRIVATE_KEY"),
			Subscriber:      os.Getenv("MEALROTA_VAPID_SUBSCRIBER"),
		},
	}, logger)

	if err := srv.Scheduler().Start(); err != nil {
		log.Fatalf("failed to start reminder scheduler: %v", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Mealrota running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	srv.Scheduler().Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
