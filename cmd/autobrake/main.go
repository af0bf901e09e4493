package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/autobrake/internal/api"
	"github.com/banshee-data/autobrake/internal/autobrake"
	"github.com/banshee-data/autobrake/internal/config"
	"github.com/banshee-data/autobrake/internal/db"
	"github.com/banshee-data/autobrake/internal/monitoring"
	"github.com/banshee-data/autobrake/internal/network"
	"github.com/banshee-data/autobrake/internal/scan"
	"github.com/banshee-data/autobrake/internal/serialmux"
	"github.com/banshee-data/autobrake/internal/vehicle"
	"github.com/banshee-data/autobrake/internal/version"
)

var (
	configPath   = flag.String("config", config.DefaultConfigPath, "Path to the autobrake JSON config")
	devMode      = flag.Bool("dev", false, "Simulate the vehicle controller instead of opening -port")
	listen       = flag.String("listen", ":8080", "HTTP listen address")
	port         = flag.String("port", "/dev/ttyACM0", "Vehicle controller serial port (empty disables the link)")
	baud         = flag.Int("baud", serialmux.DefaultBaudRate, "Vehicle controller baud rate")
	scanAddr     = flag.String("scan-addr", network.DefaultScanAddress, "UDP address to receive LaserScan datagrams on")
	forwardAddr  = flag.String("forward", "", "Also send bounds lines to this UDP host:port")
	dbPath       = flag.String("db", "autobrake.db", "SQLite path for brake events (empty disables recording)")
	pcapFile     = flag.String("pcap", "", "Replay scan datagrams from this capture instead of listening (requires -tags=pcap)")
	pcapRealtime = flag.Bool("pcap-realtime", true, "Replay the capture at its recorded pace")
	logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn or error")
	heartbeat    = flag.Duration("heartbeat", 10*time.Second, "Interval between status log lines (0 disables)")
	showVersion  = flag.Bool("version", false, "Print the build version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.Current())
		return
	}
	monitoring.SetSugared(monitoring.NewLogger(*logLevel))
	log := monitoring.L()

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if *dbPath == "" {
			log.Fatal("migrate needs -db")
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	log.Infow("starting", "version", version.Version, "git_sha", version.GitSHA, "build_time", version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := config.LoadAutobrakeConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	settings := autobrake.SettingsFromConfig(cfg)
	log.Infow("configuration loaded",
		"path", *configPath,
		"policy", settings.Envelope.Policy.Name(),
		"publish_interval", settings.PublishInterval,
	)

	vehicleSerial, err := openSerial(*devMode, *port, *baud)
	if err != nil {
		log.Fatalf("failed to open vehicle link: %v", err)
	}
	defer vehicleSerial.Close()

	if err := vehicleSerial.Initialize(); err != nil {
		log.Fatalf("failed to initialize vehicle link: %v", err)
	}

	opts := []autobrake.Option{
		autobrake.WithPublisher(autobrake.LinePublisher{Name: "serial", Send: vehicleSerial.SendCommand}),
		autobrake.WithHeartbeat(*heartbeat),
	}

	// events stays a nil interface when recording is off
	var database *db.DB
	var events api.EventStore
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		log.Infow("recording brake events", "db", *dbPath, "session", database.Session())
		opts = append(opts, autobrake.WithRecorder(database, 0))
		events = database
	}

	var forwarder *network.Forwarder
	if *forwardAddr != "" {
		forwarder, err = network.NewForwarder(*forwardAddr, time.Minute)
		if err != nil {
			log.Fatalf("failed to set up forwarding: %v", err)
		}
		defer forwarder.Close()
		opts = append(opts, autobrake.WithPublisher(autobrake.LinePublisher{Name: "udp", Send: forwarder.Send}))
	}

	node := autobrake.NewNode(settings, vehicle.NewTracker(nil), opts...)
	handleScan := func(m *scan.LaserScan) { node.HandleScan(m) }

	// Create a wait group for the HTTP server, serial, scan and publish routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if forwarder != nil {
		forwarder.Start(ctx)
	}

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := vehicleSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("failed to monitor serial port: %v", err)
		}
		log.Info("monitor routine terminated")
	}()

	// vehicle reports and movement commands feed the tracker
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serialmux.Pump(ctx, vehicleSerial, node.HandleLine, nil); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("serial pump stopped: %v", err)
		}
		log.Info("subscribe routine terminated")
	}()

	// range scans, live or replayed
	wg.Add(1)
	go func() {
		defer wg.Done()
		if *pcapFile != "" {
			p, err := udpPort(*scanAddr)
			if err != nil {
				log.Errorf("%v", err)
				return
			}
			if err := network.ReplayPCAP(ctx, *pcapFile, p, *pcapRealtime, handleScan, nil); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("PCAP replay failed: %v", err)
			}
			return
		}
		listener := network.NewScanListener(network.ScanListenerConfig{
			Address: *scanAddr,
			Handler: handleScan,
		})
		if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("scan listener stopped: %v", err)
		}
		log.Info("scan routine terminated")
	}()

	// fixed-rate bounds publication
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := node.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("publish loop stopped: %v", err)
		}
		log.Info("publish routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(node, cfg, vehicleSerial, events)
		mux := srv.ServeMux()
		srv.AttachAdminRoutes(mux)
		vehicleSerial.AttachAdminRoutes(mux)
		if database != nil {
			database.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Info("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Errorf("HTTP server force close error: %v", err)
			}
		}

		log.Info("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Info("Graceful shutdown complete")
}
