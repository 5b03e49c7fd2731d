package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/parcel-simulator/core"
	"github.com/signalsfoundry/parcel-simulator/internal/logging"
	"github.com/signalsfoundry/parcel-simulator/internal/observability"
	"github.com/signalsfoundry/parcel-simulator/kb"
	"github.com/signalsfoundry/parcel-simulator/timectrl"
)

// config holds everything main reads from flags.
type config struct {
	ScenarioPath string
	Robot        string
	Seed         int64
	Parcels      int
	MaxTurns     int
	Compare      bool
	Tasks        int
	MetricsAddr  string
	Tick         time.Duration
	RealTime     bool
	ShowRoute    bool
	// MoveEvents mirrors TracingConfig.MoveEvents.
	MoveEvents bool

	// Registerer defaults to the global Prometheus registry.
	Registerer prometheus.Registerer
}

func main() {
	var cfg config
	flag.StringVar(&cfg.ScenarioPath, "scenario", "", "YAML scenario file (defaults to the built-in village)")
	flag.StringVar(&cfg.Robot, "robot", "", "robot to run: random, route or goal (overrides the scenario)")
	flag.Int64Var(&cfg.Seed, "seed", 0, "random seed (0 uses the scenario seed, or the clock)")
	flag.IntVar(&cfg.Parcels, "parcels", -1, "number of random parcels (overrides the scenario when >= 0)")
	flag.IntVar(&cfg.MaxTurns, "max-turns", -1, "turn cap per run, 0 for none (overrides the scenario when >= 0)")
	flag.BoolVar(&cfg.Compare, "compare", false, "compare all robots over random tasks instead of running one")
	flag.IntVar(&cfg.Tasks, "tasks", 100, "number of tasks per robot in -compare mode")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; keeps serving until interrupted")
	flag.DurationVar(&cfg.Tick, "tick", 500*time.Millisecond, "delay between turns in -realtime mode")
	flag.BoolVar(&cfg.RealTime, "realtime", false, "pause -tick between turns")
	flag.BoolVar(&cfg.ShowRoute, "route", false, "print the route the robot walked after a single run")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tracingCfg := observability.TracingConfigFromEnv()
	cfg.MoveEvents = tracingCfg.MoveEvents
	shutdown, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	if err := run(ctx, cfg, os.Stdout, log); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		observability.ShutdownWithTimeout(context.Background(), shutdown, log)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, out io.Writer, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}

	sc, err := loadScenario(cfg.ScenarioPath)
	if err != nil {
		return err
	}
	applyOverrides(sc, cfg)

	seed := sc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	collector, err := observability.NewSimulationCollector(cfg.Registerer)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = serveMetrics(cfg.MetricsAddr, collector, log)
	}

	opts := []core.EngineOption{
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
		core.WithMaxTurns(sc.MaxTurns),
		core.WithMoveEvents(cfg.MoveEvents),
	}
	if cfg.RealTime && !cfg.Compare {
		opts = append(opts, core.WithPacer(timectrl.NewPacer(cfg.Tick, timectrl.RealTime)))
	}
	engine := core.NewSimulationEngine(sc.Graph, opts...)

	log.Info(ctx, "scenario loaded",
		logging.Int("locations", len(sc.Graph.Locations())),
		logging.String("start", string(sc.Start)),
		logging.String("robot", sc.Robot),
		logging.Any("seed", seed),
	)

	if cfg.Compare {
		err = compare(ctx, engine, sc, rnd, cfg.Tasks, out)
	} else {
		err = runOne(ctx, engine, sc, rnd, cfg, out, log)
	}
	if err != nil {
		return err
	}

	if metricsSrv != nil {
		log.Info(ctx, "simulation finished; serving metrics until interrupted")
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func loadScenario(path string) (*core.Scenario, error) {
	if path == "" {
		return core.LoadScenario(strings.NewReader(""))
	}
	return core.LoadScenarioFile(path)
}

func applyOverrides(sc *core.Scenario, cfg config) {
	if cfg.Robot != "" {
		sc.Robot = cfg.Robot
	}
	if cfg.Seed != 0 {
		sc.Seed = cfg.Seed
	}
	if cfg.Parcels >= 0 {
		sc.RandomParcels = cfg.Parcels
	}
	if cfg.MaxTurns >= 0 {
		sc.MaxTurns = cfg.MaxTurns
	}
}

func runOne(ctx context.Context, engine *core.SimulationEngine, sc *core.Scenario, rnd *rand.Rand, cfg config, out io.Writer, log logging.Logger) error {
	robot, err := core.NewRobot(sc.Robot, sc.Graph, sc.MailRoute, rnd)
	if err != nil {
		return err
	}

	ctx, runLog := logging.WithRunLogger(ctx, log)
	runID := logging.RunIDFromContext(ctx)

	history := kb.NewHistory()
	history.Subscribe(func(s kb.Snapshot) {
		switch {
		case s.Turn == 0:
			fmt.Fprintf(out, "Starting at %s with %d parcels\n", s.Place, len(s.Parcels))
		case s.Legal:
			fmt.Fprintf(out, "Moved to %s\n", s.Direction)
		default:
			fmt.Fprintf(out, "Stayed at %s (no road to %s)\n", s.Place, s.Direction)
		}
	})
	engine.RegisterTurnListener(func(ev core.TurnEvent) {
		err := history.Record(kb.Snapshot{
			RunID:     runID,
			Turn:      ev.Turn,
			Place:     ev.State.Place,
			Direction: ev.Direction,
			Legal:     ev.Legal,
			Parcels:   ev.State.Parcels,
		})
		if err != nil {
			runLog.Warn(ctx, "failed to record snapshot", logging.Err(err))
		}
	})

	state := sc.InitialState(rnd)
	if err := history.Record(kb.Snapshot{RunID: runID, Place: state.Place, Legal: true, Parcels: state.Parcels}); err != nil {
		return err
	}

	_, runErr := engine.Run(ctx, state, robot, nil)
	if runErr != nil && !errors.Is(runErr, core.ErrTurnLimit) {
		return runErr
	}

	last, err := history.Last(runID)
	if err != nil {
		return err
	}
	if runErr != nil {
		fmt.Fprintf(out, "Gave up after %d turns with %d parcels left\n", last.Turn, len(last.Parcels))
		return runErr
	}
	fmt.Fprintf(out, "Done in %d turns\n", last.Turn)

	if cfg.ShowRoute {
		snaps, err := history.Snapshots(runID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Route: %s\n", formatRoute(snaps))
	}
	return nil
}

// formatRoute joins the places the robot actually stood on, skipping turns
// wasted on missing roads.
func formatRoute(snaps []kb.Snapshot) string {
	places := make([]string, 0, len(snaps))
	for _, s := range snaps {
		if s.Turn > 0 && !s.Legal {
			continue
		}
		places = append(places, string(s.Place))
	}
	return strings.Join(places, " -> ")
}

func compare(ctx context.Context, engine *core.SimulationEngine, sc *core.Scenario, rnd *rand.Rand, tasks int, out io.Writer) error {
	robots := []core.Robot{
		core.RandomRobot{Graph: sc.Graph, Rand: rnd},
		core.GoalOrientedRobot{Graph: sc.Graph},
	}
	if len(sc.MailRoute) > 0 {
		robots = append(robots, core.RouteRobot{Route: sc.MailRoute})
	}

	parcels := sc.RandomParcels
	if parcels == 0 {
		parcels = core.DefaultRandomParcels
	}
	results, err := core.CompareRobots(ctx, engine, core.RandomTasks(sc.Graph, rnd, sc.Start, parcels, tasks), robots...)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(out, "%-8s average %.1f turns over %d tasks\n", r.Robot, r.AverageTurns, r.Runs)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.SimulationCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
