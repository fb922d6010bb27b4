package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"time"

	"github.com/unklstewy/ads-proximity/internal/monitor"
	"github.com/unklstewy/ads-proximity/pkg/adsb"
	"github.com/unklstewy/ads-proximity/pkg/config"
	"github.com/unklstewy/ads-proximity/pkg/coordinates"
	"github.com/unklstewy/ads-proximity/pkg/snapshot"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	airport    = flag.String("airport", "", "Airport code (default from config)")
	source     = flag.String("source", "", "ADS-B source name (default from config)")
	limit      = flag.Int("limit", 10, "Number of aircraft to print")
)

// main is a test program to verify a provider integration.
// It fetches aircraft around one airport and prints the raw observations
// next to the SI record the normalizer produces.
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
	ap, ok := cfg.Airport(code)
	if !ok {
		log.Fatalf("Unknown airport %q", code)
	}

	srcCfg, err := cfg.ADSB.ActiveSource()
	if err != nil {
		log.Fatalf("No ADS-B source: %v", err)
	}
	client, err := monitor.NewSource(srcCfg)
	if err != nil {
		log.Fatalf("Failed to create source: %v", err)
	}
	defer client.Close()

	ref := ap.Geographic()
	log.Printf("ADS-B Data Source Test - %s", client.Name())
	log.Printf("Reference: %s %s (%.4f, %.4f)", ap.Code, ap.Name, ref.Latitude, ref.Longitude)
	log.Println("=====================================")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	aircraft, err := client.GetAircraft(ctx, ref.Latitude, ref.Longitude, cfg.ADSB.SearchRadiusNM)
	if err != nil {
		if rle, ok := adsb.IsRateLimitError(err); ok {
			log.Fatalf("Rate limited: retry after %v (limit %d, remaining %d)",
				rle.RetryAfter, rle.Headers.Limit, rle.Headers.Remaining)
		}
		log.Fatalf("Failed to fetch aircraft: %v", err)
	}
	log.Printf("Found %d aircraft within %.0f nm in %v", len(aircraft), cfg.ADSB.SearchRadiusNM, time.Since(start).Round(time.Millisecond))

	snap := snapshot.Normalizer{
		Airport:      ap.Code,
		Source:       client.Name(),
		Reference:    ref,
		RadiusMeters: cfg.ADSB.PrefilterRadiusMeters,
	}.Normalize(aircraft)
	log.Printf("Normalized: %d kept, %d without position, %d beyond %.0f m",
		len(snap.Records), snap.Excluded, snap.OutOfRange, cfg.ADSB.PrefilterRadiusMeters)
	log.Println("=====================================")

	printed := 0
	for _, ac := range aircraft {
		if ac.Latitude == nil || ac.Longitude == nil {
			continue
		}
		pos := coordinates.Geographic{Latitude: *ac.Latitude, Longitude: *ac.Longitude}
		rec := snapshot.Convert(ac)

		log.Printf("\nAircraft %s (%s), %s units:", rec.Identifier, rec.Callsign, ac.Units)
		log.Printf("  Position: %.4f, %.4f", pos.Latitude, pos.Longitude)
		log.Printf("  Raw:      alt %s  gs %s  vs %s  ground %s",
			raw(ac.Altitude), raw(ac.GroundSpeed), raw(ac.VerticalRate), groundText(ac.OnGround))
		log.Printf("  SI:       alt %.0f m  gs %.1f m/s  vs %.2f m/s", rec.Altitude, rec.GroundSpeed, rec.VerticalRate)
		log.Printf("  From %s: %.1f nm %s (%.0f°)",
			ap.Code, coordinates.DistanceNauticalMiles(ref, pos), azimuthToCardinal(coordinates.Bearing(ref, pos)), coordinates.Bearing(ref, pos))
		if !ac.LastSeen.IsZero() {
			log.Printf("  Last Seen: %s (%.1fs ago)", ac.LastSeen.Format("15:04:05"), time.Since(ac.LastSeen).Seconds())
		}

		printed++
		if printed >= *limit {
			log.Printf("\n... and %d more aircraft", len(aircraft)-printed)
			break
		}
	}

	log.Println("\n=====================================")
	log.Println("Test complete!")
}

func raw(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func groundText(b *bool) string {
	switch {
	case b == nil:
		return "unknown"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

// azimuthToCardinal converts azimuth in degrees to cardinal direction.
func azimuthToCardinal(azimuth float64) string {
	directions := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	index := int((coordinates.NormalizeAzimuth(azimuth) + 11.25) / 22.5)
	return directions[index%16]
}
