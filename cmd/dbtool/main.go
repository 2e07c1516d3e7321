package main

import (
	"context"
	"log"
	"time"
	"trip-record-service/internal/adapters/repositories"
	"trip-record-service/internal/config"
	"trip-record-service/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// dbtool creates the trip_records schema in every configured partition and,
// when SEED_PATH is set, loads the seed file through the record service.
func main() {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Driver == "memory" {
		log.Fatal("dbtool needs a database driver (STORE_DRIVER=postgres or sqlite)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsns := make(map[int]string, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		dsns[p.Year] = p.DSN
	}

	log.Println("Initializing partition schemas...")
	stores, closeStores, err := repositories.OpenPartitionStores(ctx, cfg.Driver, dsns)
	if err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	defer closeStores()
	log.Printf("Schema ready. partitions=%d", len(stores))

	if cfg.SeedPath == "" {
		return
	}

	shards, err := services.NewShardRouter(stores)
	if err != nil {
		log.Fatal(err)
	}
	svc := services.NewRecordService(shards, services.NewFanoutQueryEngine(shards), nil)

	log.Println("Seeding partitions...")
	recs, err := repositories.LoadSeedFile(cfg.SeedPath)
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	created, err := svc.Import(ctx, recs)
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Printf("Seeding complete. created=%d total=%d", created, len(recs))
}
