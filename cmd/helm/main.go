// Command helm runs the collision and obstacle avoidance behaviors against
// a live report feed, records every decision cycle to SQLite and serves
// the debug surfaces, a websocket cycle feed and gRPC health.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/helm.avoid/internal/behavior"
	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/db"
	"github.com/banshee-data/helm.avoid/internal/helm"
	"github.com/banshee-data/helm.avoid/internal/monitor"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/network"
	"github.com/banshee-data/helm.avoid/internal/scenario"
	"github.com/banshee-data/helm.avoid/internal/serialmux"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
	"github.com/banshee-data/helm.avoid/internal/units"
	"github.com/banshee-data/helm.avoid/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address for debug routes and the cycle feed")
	grpcListen  = flag.String("grpc-listen", ":9090", "gRPC health listen address (empty disables)")
	dbPath      = flag.String("db", "helm.db", "SQLite database for cycle records")
	configPath  = flag.String("config", config.DefaultConfigPath, "Tuning config JSON")
	runLabel    = flag.String("label", "", "Label stored with this run")
	logFile     = flag.String("log-file", "", "Append logs to this file instead of stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")

	port         = flag.String("port", "", "Serial port carrying the report feed (empty disables)")
	portOptions  = flag.String("port-options", "", "Serial line settings JSON")
	udpListen    = flag.String("udp-listen", "", fmt.Sprintf("UDP address for the report feed, e.g. :%d (empty disables)", network.DefaultPort))
	udpForward   = flag.String("udp-forward", "", "Forward received datagrams to this address")
	pcapFile     = flag.String("pcap", "", "Replay report datagrams from a pcap capture")
	pcapRealtime = flag.Bool("pcap-realtime", true, "Pace pcap replay at capture timing")
	captureIface = flag.String("capture-iface", "", "Sniff report datagrams on this interface (needs -tags=pcap)")
	scenarioPath = flag.String("scenario", "", "Drive the world from a YAML scenario instead of a feed")

	contacts    = flag.String("contacts", "", "Comma separated contacts to avoid, one collision behavior each")
	obstacles   = flag.Bool("obstacles", true, "Run an obstacle avoidance behavior over announced obstacles")
	maxSpeed    = flag.Float64("max-speed", 5, "Top of the speed axis, in --speed-units")
	speedUnits  = flag.String("speed-units", units.MPS, "Units for --max-speed: "+units.GetValidUnitsString())
	speedPoints = flag.Int("speed-points", 6, "Points on the speed axis")
	verbose     = flag.Bool("verbose", false, "Log surfaces and hints every cycle")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		fs := flag.NewFlagSet("migrate", flag.ExitOnError)
		path := fs.String("db", "helm.db", "SQLite database")
		fs.Usage = func() { db.PrintMigrateHelp(os.Stderr) }
		_ = fs.Parse(os.Args[2:])
		if err := db.RunMigrateCommand(os.Stdout, fs.Args(), *path); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		monitoring.SetOutput(f)
	}
	monitoring.Logf("%s starting", version.String())

	tuning, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	topSpeed, err := units.ToMPS(*maxSpeed, *speedUnits)
	if err != nil {
		log.Fatalf("invalid --speed-units: %v", err)
	}
	domain, err := surface.CourseSpeed(topSpeed, *speedPoints)
	if err != nil {
		log.Fatalf("invalid decision domain: %v", err)
	}

	var sc *scenario.Scenario
	var behaviors []behavior.Behavior
	if *scenarioPath != "" {
		if sc, err = scenario.Load(*scenarioPath); err != nil {
			log.Fatalf("failed to load scenario: %v", err)
		}
		if behaviors, err = sc.Behaviors(domain, tuning); err != nil {
			log.Fatalf("failed to build scenario behaviors: %v", err)
		}
	} else {
		behaviors, err = buildBehaviors(parseContacts(*contacts), *obstacles, domain, tuning)
		if err != nil {
			log.Fatalf("failed to build behaviors: %v", err)
		}
	}
	if len(behaviors) == 0 {
		log.Fatal("no behaviors configured: pass --contacts, --obstacles or --scenario")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	clock := timeutil.RealClock{}
	store := monitor.NewSurfaceStore()
	feed := monitor.NewLiveFeed()
	h := helm.New(newWorld(clock), behaviors, helm.Options{
		Clock:      clock,
		Poster:     helm.LogPoster{Verbose: *verbose},
		Recorders:  []helm.Recorder{database, store, feed},
		Reports:    database,
		StaleAfter: tuning.GetStaleAfter(),
	})
	health := helm.NewHealthReporter()
	h.SetHealthReporter(health)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureRun(ctx, h.RunID(), *runLabel, clock.Now()); err != nil {
		log.Fatalf("failed to register run: %v", err)
	}

	feedSerial, err := openSerial(*port, *portOptions)
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}
	defer feedSerial.Close()
	if err := feedSerial.Initialize(); err != nil {
		log.Fatalf("failed to initialize serial port: %v", err)
	}

	var wg sync.WaitGroup
	lines := make(chan string, 256)

	// feed sources
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feedSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("serial monitor: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := feedSerial.Subscribe()
		defer feedSerial.Unsubscribe(id)
		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				select {
				case lines <- payload:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if *udpListen != "" {
		var fwd *network.PacketForwarder
		if *udpForward != "" {
			if fwd, err = network.NewPacketForwarder(*udpForward, time.Minute); err != nil {
				log.Fatalf("failed to create forwarder: %v", err)
			}
			fwd.Start(ctx)
		}
		l := network.NewUDPListener(network.UDPListenerConfig{Address: *udpListen, LogInterval: time.Minute, Forwarder: fwd})
		runSource(ctx, &wg, "udp listener", func(ctx context.Context) error { return l.Start(ctx, lines) })
	}
	if *pcapFile != "" {
		runSource(ctx, &wg, "pcap replay", func(ctx context.Context) error {
			_, err := network.ReadPCAPFile(ctx, *pcapFile, network.ReplayOptions{UDPPort: network.DefaultPort, Realtime: *pcapRealtime}, lines)
			return err
		})
	}
	if *captureIface != "" {
		runSource(ctx, &wg, "capture", func(ctx context.Context) error {
			return network.CaptureInterface(ctx, *captureIface, network.DefaultPort, lines)
		})
	}
	if sc != nil {
		runSource(ctx, &wg, "scenario", func(ctx context.Context) error {
			return playScenario(ctx, sc, clock, lines)
		})
	}

	// ingest and decide
	wg.Add(1)
	go func() {
		defer wg.Done()
		stats, err := h.Ingest(ctx, lines)
		monitoring.Logf("ingest stopped: %v %v", stats, err)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Activate()
		if err := h.Run(ctx, tuning.GetCyclePeriod()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("helm stopped: %v", err)
		}
		h.Deactivate()
		// One last cycle posts the erase hints; ctx is already done.
		if _, err := h.Cycle(context.Background(), clock.Now()); err != nil {
			log.Printf("final cycle: %v", err)
		}
	}()

	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			log.Fatalf("failed to listen for gRPC: %v", err)
		}
		runSource(ctx, &wg, "grpc health", func(ctx context.Context) error {
			return health.Serve(ctx, lis)
		})
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		feedSerial.AttachAdminRoutes(mux)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach db admin routes: %v", err)
		}
		monitor.NewWebServer(store, feed).AttachAdminRoutes(mux)

		server := &http.Server{Addr: *listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			_ = server.Close()
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}

// runSource runs a feed source until it returns, logging anything but a
// normal shutdown.
func runSource(ctx context.Context, wg *sync.WaitGroup, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("%s: %v", name, err)
			return
		}
		monitoring.Logf("%s stopped", name)
	}()
}

func openSerial(path, optionsPath string) (serialmux.SerialMuxInterface, error) {
	if path == "" {
		return serialmux.NewDisabledSerialMux(), nil
	}
	opts := serialmux.PortOptions{}
	if optionsPath != "" {
		var err error
		if opts, err = serialmux.LoadPortOptions(optionsPath); err != nil {
			return nil, err
		}
	}
	mux, err := serialmux.NewRealSerialMux(path, opts, opts.InitCommands...)
	if err != nil {
		return nil, err
	}
	return mux, nil
}

// playScenario steps sc on the real clock, one cycle period per step.
func playScenario(ctx context.Context, sc *scenario.Scenario, clock timeutil.Clock, out chan<- string) error {
	start := clock.Now()
	player := scenario.NewPlayer(sc, start)
	ticker := clock.NewTicker(sc.Cycle())
	defer ticker.Stop()
	for elapsed := time.Duration(0); elapsed <= sc.Duration(); elapsed += sc.Cycle() {
		for _, line := range player.Step(elapsed) {
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-ticker.C():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
