package main

import (
	"context"
	"log"
	"net/http"
	"time"
	"trip-record-service/internal/adapters/cache"
	"trip-record-service/internal/adapters/repositories"
	"trip-record-service/internal/api"
	"trip-record-service/internal/config"
	"trip-record-service/internal/ports"
	"trip-record-service/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// main is the application composition root.
// It wires the partition stores and the lookup cache behind ports and starts the HTTP server.
func main() {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dsns := make(map[int]string, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		dsns[p.Year] = p.DSN
	}

	stores, closeStores, err := repositories.OpenPartitionStores(ctx, cfg.Driver, dsns)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStores()

	shards, err := services.NewShardRouter(stores)
	if err != nil {
		log.Fatal(err)
	}

	var recordCache ports.RecordCache = cache.NewMemoryRecordCache()
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Close()
		recordCache = cache.NewRedisRecordCache(client, cfg.CacheTTL)
	}

	svc := services.NewRecordService(shards, services.NewFanoutQueryEngine(shards), recordCache)

	// Seed demo data on startup for local runs.
	if cfg.SeedPath != "" {
		recs, err := repositories.LoadSeedFile(cfg.SeedPath)
		if err != nil {
			log.Fatal(err)
		}
		created, err := svc.Import(ctx, recs)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Seeded trips created=%d total=%d", created, len(recs))
	}

	router := api.NewRouter(svc, shards.Years(), api.Options{
		APIKey:            cfg.APIKey,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		RateBurst:         cfg.RateLimitBurst,
	})
	if cfg.APIKey == "" {
		log.Println("API_KEY not set (authentication disabled)")
	}

	log.Printf("Server listening addr=:%s driver=%s partitions=%v", cfg.Port, cfg.Driver, shards.Years())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
