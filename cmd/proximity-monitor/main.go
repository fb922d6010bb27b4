// ADS-B Proximity Monitor
// Console alert board listing aircraft around an airport by conflict severity
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/ads-proximity/internal/logging"
	"github.com/unklstewy/ads-proximity/internal/monitor"
	"github.com/unklstewy/ads-proximity/pkg/config"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	airport    = flag.String("airport", "", "Airport code to monitor (default from config)")
	source     = flag.String("source", "", "ADS-B source name (default from config)")
	once       = flag.Bool("once", false, "Print one report and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *source != "" {
		cfg.ADSB.Source = *source
	}
	code := *airport
	if code == "" {
		code = cfg.Monitor.DefaultAirport
	}
	if _, ok := cfg.Airport(code); !ok {
		log.Fatalf("Unknown airport %q", code)
	}

	// stderr belongs to the board; log to the file only
	var logOut io.Writer = os.Stderr
	if !*once {
		logOut = io.Discard
	}
	logger, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()

	srcCfg, err := cfg.ADSB.ActiveSource()
	if err != nil {
		log.Fatalf("No ADS-B source: %v", err)
	}
	src, err := monitor.NewSource(srcCfg)
	if err != nil {
		log.Fatalf("Failed to create ADS-B source: %v", err)
	}

	svc, err := monitor.New(cfg, src, logger.Logger)
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}
	defer svc.Close()

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		snap, err := svc.Snapshot(ctx, code)
		if err != nil {
			log.Fatalf("Failed to fetch %s: %v", code, err)
		}
		fmt.Print(renderReport(snap))
		return
	}

	interval := time.Duration(cfg.ADSB.UpdateIntervalSeconds) * time.Second
	m := newModel(svc, svc.Airports(), code, interval)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
