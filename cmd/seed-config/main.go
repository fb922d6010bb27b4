// Seed Config
// Writes the configured airports and threshold table into the SQL store
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/unklstewy/ads-proximity/internal/db"
	"github.com/unklstewy/ads-proximity/pkg/config"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	force      = flag.Bool("force", false, "Overwrite stored airports and thresholds")
	writeFile  = flag.String("write-config", "", "Also write the effective configuration to this path")
)

func main() {
	flag.Parse()

	log.Println("ADS-B Proximity config seeder")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *writeFile != "" {
		if err := cfg.Save(*writeFile); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		log.Printf("Wrote %s", *writeFile)
	}

	if !cfg.Database.Enabled {
		log.Println("Database disabled in config, nothing to seed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	database, err := db.ReconnectWithRetry(ctx, cfg.Database, 3, time.Second, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	if *force {
		airports := db.NewAirportRepository(database)
		for _, a := range cfg.Airports {
			if err := airports.Upsert(ctx, a); err != nil {
				log.Fatalf("Failed to store airport: %v", err)
			}
		}
		if err := db.NewThresholdRepository(database).Save(ctx, cfg.Thresholds); err != nil {
			log.Fatalf("Failed to store thresholds: %v", err)
		}
	} else if err := database.Seed(ctx, cfg); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	stats, err := database.GetStats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	log.Printf("Stored %d airports, %d threshold categories (%s)",
		stats["airports"], stats["threshold_categories"], database.Driver())
}
