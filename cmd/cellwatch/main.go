package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/cellwatch/internal/config"
	"github.com/banshee-data/cellwatch/internal/debugapi"
	"github.com/banshee-data/cellwatch/internal/display"
	"github.com/banshee-data/cellwatch/internal/display/window"
	"github.com/banshee-data/cellwatch/internal/feed"
	"github.com/banshee-data/cellwatch/internal/journal"
	"github.com/banshee-data/cellwatch/internal/sim"
	sigsvc "github.com/banshee-data/cellwatch/internal/signal"
	"github.com/banshee-data/cellwatch/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON tuning config (built-in defaults when empty)")
	source      = flag.String("source", "synthetic", "Detection source: serial, stdin, fixture, udp, replay, capture, synthetic, none")
	serialPort  = flag.String("port", "/dev/ttyUSB0", "Serial device for -source=serial")
	baudRate    = flag.Int("baud", 115200, "Serial baud rate")
	fixtureFile = flag.String("fixture", "config/fixtures.jsonl", "Detection lines for -source=fixture")
	fixtureRate = flag.Duration("fixture-interval", 200*time.Millisecond, "Delay between fixture lines")
	udpListen   = flag.String("udp-listen", ":5600", "UDP address for -source=udp")
	udpRcvBuf   = flag.Int("udp-rcvbuf", 4<<20, "UDP receive buffer in bytes")
	pcapFile    = flag.String("pcap", "", "Capture file for -source=replay")
	pcapPort    = flag.Int("pcap-port", 5600, "UDP port carrying detections in replayed or captured traffic")
	replaySpeed = flag.Float64("replay-speed", 1, "Replay speed multiplier; 0 replays as fast as possible")
	captureIf   = flag.String("iface", "eth0", "Interface for -source=capture (needs -tags=pcap)")
	listen      = flag.String("listen", ":8080", "HTTP listen address for the API and debug routes; empty disables")
	grpcListen  = flag.String("grpc-listen", ":50051", "gRPC listen address for the signal stream; empty disables")
	journalPath = flag.String("journal", "", "SQLite journal path; empty disables")
	headless    = flag.Bool("headless", false, "Run without a window")
	watchAddr   = flag.String("watch", "", "Print the signal stream of a running instance at this gRPC address and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *watchAddr != "" {
		if err := watch(ctx, *watchAddr); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("cellwatch: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func run(parent context.Context, cfg *config.Config) error {
	var (
		jrnl     *journal.Journal
		recorder sim.Recorder
	)
	if *journalPath != "" {
		var err error
		if jrnl, err = journal.Open(*journalPath, journal.Options{}); err != nil {
			return err
		}
		defer jrnl.Close()
		recorder = jrnl
	}

	preview := debugapi.NewPreviewStore()
	engine, err := sim.New(sim.Options{Config: cfg, Preview: preview, Recorder: recorder})
	if err != nil {
		return err
	}
	pump := feed.NewPump(engine.Detections(), cfg.GetMinConfidence())
	broker := sigsvc.NewBroker(engine.Signal(), nil)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	apiOpts := debugapi.Options{Engine: engine, Broker: broker, Pump: pump, Preview: preview}
	if jrnl != nil {
		apiOpts.Journal = jrnl
	}
	mux := debugapi.NewServer(apiOpts).ServeMux()
	if jrnl != nil {
		if err := jrnl.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}

	if err := startSource(ctx, g, mux, engine, pump, cfg); err != nil {
		return err
	}

	g.Go(func() error { return broker.Run(ctx) })
	if jrnl != nil {
		g.Go(func() error { return jrnl.Run(ctx) })
	}
	if *grpcListen != "" {
		g.Go(func() error { return sigsvc.NewServer(broker).Serve(ctx, *grpcListen) })
	}

	if *headless {
		disp := display.NewHeadless(cfg.GetWindowWidth(), cfg.GetWindowHeight())
		off := display.NewOffscreen(disp)
		disp.AttachAdminRoutes(mux)
		off.AttachAdminRoutes(mux)
		g.Go(func() error { return engine.Run(ctx, disp, off) })
	}

	if *listen != "" {
		serveHTTP(ctx, g, mux)
	}

	if !*headless {
		// Ebiten must own the main goroutine.
		err := window.Run(ctx, engine, window.Options{
			Title:  "cellwatch",
			Width:  cfg.GetWindowWidth(),
			Height: cfg.GetWindowHeight(),
			TPS:    cfg.GetRenderFPS(),
		})
		cancel()
		if werr := g.Wait(); err == nil {
			err = werr
		}
		return err
	}
	return g.Wait()
}

// startSource wires the selected detection source into the pump.
func startSource(ctx context.Context, g *errgroup.Group, mux *http.ServeMux, engine *sim.Engine, pump *feed.Pump, cfg *config.Config) error {
	switch *source {
	case "serial":
		m, err := feed.OpenSerial(*serialPort, feed.PortOptions{BaudRate: *baudRate})
		if err != nil {
			return err
		}
		attachMux(ctx, g, mux, m, pump)

	case "stdin":
		attachMux(ctx, g, mux, feed.NewMux(feed.NewReaderPort(os.Stdin)), pump)

	case "fixture":
		lines, err := readFixture(*fixtureFile)
		if err != nil {
			return err
		}
		attachMux(ctx, g, mux, feed.NewMux(feed.NewFixturePort(lines, *fixtureRate)), pump)

	case "udp":
		l := feed.NewUDPListener(feed.UDPListenerConfig{Address: *udpListen, RcvBuf: *udpRcvBuf, Pump: pump})
		g.Go(func() error { return ignoreCanceled(l.Start(ctx)) })

	case "replay":
		if *pcapFile == "" {
			return errors.New("-source=replay needs -pcap")
		}
		g.Go(func() error {
			st, err := feed.ReplayPCAP(ctx, *pcapFile, pump, feed.ReplayOptions{Port: *pcapPort, Speed: *replaySpeed})
			log.Printf("replay finished: %d packets, %d matched, %d rejected", st.Packets, st.Matched, st.Rejected)
			return ignoreCanceled(err)
		})

	case "capture":
		g.Go(func() error { return ignoreCanceled(feed.CaptureLive(ctx, *captureIf, *pcapPort, pump)) })

	case "synthetic":
		gen := feed.NewSynthetic(cfg.GetSeed(), nil)
		g.Go(func() error { return ignoreCanceled(gen.Run(ctx, engine.Detections(), engine.Frames())) })

	case "none":

	default:
		return fmt.Errorf("unknown source %q", *source)
	}
	log.Printf("detection source: %s", *source)
	return nil
}

func attachMux[T feed.Porter](ctx context.Context, g *errgroup.Group, mux *http.ServeMux, m *feed.Mux[T], pump *feed.Pump) {
	m.AttachAdminRoutes(mux)
	pumpLines := pump.Attach(m)
	g.Go(func() error { return ignoreCanceled(pumpLines(ctx)) })
	g.Go(func() error {
		defer m.Close()
		return ignoreCanceled(m.Monitor(ctx))
	})
}

func serveHTTP(ctx context.Context, g *errgroup.Group, mux *http.ServeMux) {
	server := &http.Server{
		Addr:    *listen,
		Handler: debugapi.LoggingMiddleware(mux),
	}
	g.Go(func() error {
		log.Printf("HTTP listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		return nil
	})
}

func readFixture(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	var lines [][]byte
	scan := bufio.NewScanner(bytes.NewReader(data))
	for scan.Scan() {
		if line := bytes.TrimSpace(scan.Bytes()); len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixtures file %s is empty", path)
	}
	return lines, nil
}

func watch(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	err = sigsvc.Watch(ctx, conn, func(person bool) {
		fmt.Printf("%s person=%t\n", time.Now().Format(time.RFC3339Nano), person)
	})
	if status.Code(err) == codes.Canceled {
		return nil
	}
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
