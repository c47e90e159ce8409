// navserver: AR indoor navigation server
// Loads a floor plan and serves one navigation engine per connected device
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-arnav/internal/config"
	"github.com/teslashibe/go-arnav/internal/log"
	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/session"
	"github.com/teslashibe/go-arnav/pkg/web"
)

var (
	version    = "0.3.0"
	configPath = flag.String("config", "navserver.json", "Path to JSON config file")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	planPath   = flag.String("floorplan", "", "Floor plan .svg or .json (overrides config)")
	logLevel   = flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	static     = flag.String("static", "", "Directory with the dashboard front end")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *planPath != "" {
		cfg.FloorPlan.Path = *planPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *static != "" {
		cfg.StaticDir = *static
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("navserver")

	fmt.Println()
	fmt.Println("🧭 AR Navigation v" + version)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The plan loads in the background; devices wait on the store.
	store := floorplan.NewStore(floorplan.WithLogger(log.Component("floorplan")))
	store.Load(ctx, cfg.FloorPlanSource(log.Component("floorplan")))

	opts := []web.Option{
		web.WithLogger(log.Component("web")),
		web.WithSessionOptions(
			session.WithLogger(log.Component("session")),
			session.WithReadyTimeout(cfg.ReadyTimeout()),
		),
	}
	if cfg.StaticDir != "" {
		opts = append(opts, web.WithStaticDir(cfg.StaticDir))
	}
	server := web.NewServer(cfg.Addr, store, cfg.NavigationConfig(), opts...)

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting",
			"addr", cfg.Addr,
			"floorplan", cfg.FloorPlan.Path,
			"map_units_to_meters", cfg.Navigation.MapUnitsToMeters,
			"recalibrate", cfg.Navigation.Recalibrate)
		errc <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
		os.Exit(1)
	}
}
