// ADS-B Proximity Server
// Serves per-airport proximity snapshots over a REST API
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/ads-proximity/internal/db"
	"github.com/unklstewy/ads-proximity/internal/logging"
	"github.com/unklstewy/ads-proximity/internal/monitor"
	"github.com/unklstewy/ads-proximity/pkg/config"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	port       = flag.String("port", "", "HTTP server port (overrides config)")
	poll       = flag.Bool("poll", false, "Refresh every airport in the background on the update interval")
)

func main() {
	flag.Parse()

	log.Println("Starting ADS-B Proximity Server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var database *db.DB
	if cfg.Database.Enabled {
		database, err = db.ReconnectWithRetry(ctx, cfg.Database, 5, time.Second, logger.Logger)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		if err := database.ApplyTo(ctx, cfg); err != nil {
			log.Fatalf("Failed to load configuration from database: %v", err)
		}
		logger.Info("configuration loaded from database", slog.String("driver", database.Driver()))
	}

	srcCfg, err := cfg.ADSB.ActiveSource()
	if err != nil {
		log.Fatalf("No ADS-B source: %v", err)
	}
	source, err := monitor.NewSource(srcCfg)
	if err != nil {
		log.Fatalf("Failed to create ADS-B source: %v", err)
	}

	svc, err := monitor.New(cfg, source, logger.Logger)
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}
	defer svc.Close()

	if *poll {
		go func() {
			if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("poller stopped", slog.Any("error", err))
			}
		}()
	}

	srv := NewServer(cfg, svc, database, logger.Logger)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://%s", httpServer.Addr)
		log.Printf("Source: %s, airports: %d, default: %s",
			source.Name(), len(cfg.Airports), cfg.Monitor.DefaultAirport)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
