// Command netindexer continuously scans a target network, fingerprints
// whatever TCP services answer, and persists the results to a local
// SQLite database for later export.
package main

import (
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/netindexer/internal/config"
	"github.com/snapetech/netindexer/internal/engine"
	"github.com/snapetech/netindexer/internal/export"
	"github.com/snapetech/netindexer/internal/fleet"
	"github.com/snapetech/netindexer/internal/health"
	"github.com/snapetech/netindexer/internal/metrics"
	"github.com/snapetech/netindexer/internal/scheduler"
	"github.com/snapetech/netindexer/internal/settingsfile"
	"github.com/snapetech/netindexer/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("netindexer: %v", err)
	}
}

func run() error {
	fleetConfig := flag.String("fleet", "", "path to a fleet manifest; when set, supervises multiple netindexer targets as child processes instead of scanning directly")
	envFile := flag.String("env-file", "", "optional .env file to load before reading environment")
	target := flag.String("target", "", "CIDR or IP to scan (overrides NETINDEXER_TARGET / settings file)")
	priority := flag.Int("priority", 0, "scheduler priority for newly enqueued chunks")
	rate := flag.Int("rate", 0, "concurrent probe workers / requests per second (0 = use config default)")
	ports := flag.String("ports", "", "comma-separated ports to probe (empty = engine default list)")
	loopFlag := flag.Bool("loop", false, "keep scanning indefinitely instead of exiting when the queue drains")
	maxLoad := flag.Float64("max-load", 0, "pause scanning above this load average (0 = use settings file)")
	coolDown := flag.Float64("cool-down", 0, "resume scanning once load average drops below this (0 = use settings file)")
	dbPath := flag.String("db", "", "path to the SQLite observation store")
	settingsPath := flag.String("settings", "", "path to the JSON settings file")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (empty disables)")
	exportOnly := flag.Bool("export", false, "write the actionable-service report to stdout and exit, without scanning")
	flag.Parse()

	if *fleetConfig != "" {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return fleet.Run(ctx, *fleetConfig)
	}

	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := config.Load()
	if *target != "" {
		cfg.Target = *target
	}
	if *priority != 0 {
		cfg.Priority = *priority
	}
	if *rate != 0 {
		cfg.Rate = *rate
	}
	if *loopFlag {
		cfg.Loop = true
	}
	if *maxLoad != 0 {
		cfg.MaxLoad = *maxLoad
	}
	if *coolDown != 0 {
		cfg.CoolDownTarget = *coolDown
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *settingsPath != "" {
		cfg.SettingsPath = *settingsPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *ports != "" {
		parsed, err := parsePortList(*ports)
		if err != nil {
			return fmt.Errorf("parse --ports: %w", err)
		}
		cfg.Ports = parsed
	}

	settings, err := settingsfile.Load(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("load settings file: %w", err)
	}
	if cfg.Target == "" {
		cfg.Target = settings.TargetNetwork
	}
	if cfg.MaxLoad == 0 {
		cfg.MaxLoad = settings.MaxLoad
	}
	if cfg.CoolDownTarget == 0 {
		cfg.CoolDownTarget = settings.CoolDownTarget
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if *exportOnly {
		rows, err := export.Query(st.DB())
		if err != nil {
			return fmt.Errorf("export query: %w", err)
		}
		return export.WriteReport(os.Stdout, rows)
	}

	if cfg.Target == "" {
		return fmt.Errorf("no target specified: pass --target, set NETINDEXER_TARGET, or configure target_network in %s", cfg.SettingsPath)
	}

	sch := scheduler.New(st)
	if err := sch.Initialize(cfg.Target, cfg.Priority); err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/healthz", health.Handler(func() health.Status {
			return health.CheckStore(st.DB(), 30*time.Minute)
		}))
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("netindexer: metrics listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("netindexer: metrics server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	eng := engine.New(toEngineConfig(cfg), st, sch, collector, nil, nil)

	log.Printf("netindexer: scanning %s (priority=%d rate=%d loop=%t)", cfg.Target, cfg.Priority, cfg.Rate, cfg.Loop)
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run engine: %w", err)
	}
	log.Printf("netindexer: stopped")
	return nil
}

func toEngineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Rate:           cfg.Rate,
		Ports:          cfg.Ports,
		Loop:           cfg.Loop,
		MaxLoad:        cfg.MaxLoad,
		CoolDownTarget: cfg.CoolDownTarget,
	}
}

func parsePortList(s string) ([]int, error) {
	var out []int
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			tok := s[start:i]
			start = i + 1
			if tok == "" {
				continue
			}
			var n int
			if _, err := fmt.Sscanf(tok, "%d", &n); err != nil {
				return nil, fmt.Errorf("invalid port %q", tok)
			}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no ports parsed from %q", s)
	}
	return out, nil
}
