package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"smart-bin-backend/config"
	"smart-bin-backend/internal/bootstrap"
	"smart-bin-backend/internal/seed"
)

func main() {
	seedDir := flag.String("seed-config", ".", "directory holding seed.yaml")
	flag.Parse()

	logger := log.New(os.Stdout, "binseed ", log.LstdFlags)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	seedCfg, err := seed.LoadConfig(*seedDir)
	if err != nil {
		logger.Fatalf("failed to load seed configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, _, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to initialize %s store: %v", cfg.Database.Driver, err)
	}

	n, err := seed.Run(ctx, st, seedCfg, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), time.Now())
	if err != nil {
		logger.Fatalf("seeding failed after %d readings: %v", n, err)
	}
	logger.Printf("Historical data and live bin status uploaded: %d readings for %d bins", n, len(seedCfg.Devices))
}
