package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaunagostinho/field-compass/internal/compass"
	"github.com/shaunagostinho/field-compass/internal/gps"
	"github.com/shaunagostinho/field-compass/internal/metrics"
	"github.com/shaunagostinho/field-compass/internal/publish"
	"github.com/shaunagostinho/field-compass/internal/server"
	"github.com/shaunagostinho/field-compass/internal/targets"
	"github.com/shaunagostinho/field-compass/web"
)

func main() {
	configPath := flag.String("config", "/etc/field-compass/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with simulated GPS and compass")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	targetsFile := flag.String("targets", "", "Override survey export file")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] field-compass starting")

	cfg := server.LoadConfig(*configPath)

	if *demo {
		cfg.GPS.Type = "demo"
		cfg.Compass.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *targetsFile != "" {
		cfg.Targets.File = *targetsFile
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	// Targets: the UI still works without a catalog, it just has nothing
	// to select.
	catalog, err := targets.Load(cfg.Targets.File)
	if err != nil {
		log.Printf("[targets] %v, starting with no targets", err)
		catalog = targets.Empty()
	}

	// GPS: "browser" means fixes arrive over the websocket only
	var gpsProv gps.Provider
	switch cfg.GPS.Type {
	case "nmea":
		gpsProv = gps.NewNMEA(gps.NMEAConfig{
			PortPath: cfg.GPS.PortPath,
			BaudRate: cfg.GPS.BaudRate,
		})
	case "demo":
		gpsProv = gps.NewDemoGPS(cfg.GPS.Demo)
	}
	if gpsProv != nil {
		log.Printf("[main] GPS: %s", gpsProv.Name())
		go connectWithRetry(ctx, "GPS", gpsProv, 10)
	}

	var compassProv compass.Provider
	switch cfg.Compass.Type {
	case "nmea":
		compassProv = compass.NewNMEA(compass.NMEAConfig{
			PortPath: cfg.Compass.PortPath,
			BaudRate: cfg.Compass.BaudRate,
		})
	case "demo":
		compassProv = compass.NewDemo()
	}
	if compassProv != nil {
		log.Printf("[main] compass: %s", compassProv.Name())
		go connectWithRetry(ctx, "compass", compassProv, 10)
	}

	collector, err := metrics.New(nil)
	if err != nil {
		log.Printf("[main] metrics disabled: %v", err)
	}

	var pub publish.Publisher = publish.Nop{}
	if cfg.MQTT.Enabled {
		if p, err := publish.Connect(cfg.MQTT); err != nil {
			log.Printf("[mqtt] %v, publishing disabled", err)
		} else {
			pub = p
		}
	}

	srv := server.New(cfg, server.Deps{
		GPS:       gpsProv,
		Compass:   compassProv,
		Catalog:   catalog,
		WebFS:     web.FS,
		Metrics:   collector,
		Publisher: pub,
	})
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}

	if gpsProv != nil {
		gpsProv.Close()
	}
	if compassProv != nil {
		compassProv.Close()
	}
}

// connectable is satisfied by both gps.Provider and compass.Provider.
type connectable interface {
	Connect() error
	Close() error
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, name string, c connectable, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.Connect()
		if err == nil {
			log.Printf("[%s] connected successfully (attempt %d)", name, attempt+1)
			return
		}

		attempt++
		if attempt <= maxAttempts {
			log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
				name, attempt, maxAttempts, err, delay)
		} else {
			log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
				name, attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
