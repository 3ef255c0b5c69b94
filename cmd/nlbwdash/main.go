package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"nlbwdash/internal/aggregator"
	"nlbwdash/internal/api"
	"nlbwdash/internal/config"
	"nlbwdash/internal/dashboard"
	"nlbwdash/internal/daterange"
	"nlbwdash/internal/export"
	"nlbwdash/internal/logging"
	"nlbwdash/internal/report"
	"nlbwdash/internal/server"
	"nlbwdash/internal/state"
	"nlbwdash/internal/telemetry"
)

type options struct {
	configPath string
	from, to   string
	days       int
	devices    string
	mac        string
	p1From     string
	p1To       string
	p2From     string
	p2To       string
	debug      bool
}

// resolveRange picks the analysis range: explicit from/to, then the last
// n days, then every date the calendar has data for.
func resolveRange(ctx context.Context, opts options, client *api.Client, cfg *config.Config, now time.Time, logger *zap.Logger) (daterange.Range, error) {
	switch {
	case opts.from != "" && opts.to != "":
		return daterange.Parse(opts.from, opts.to)
	case opts.from != "" || opts.to != "":
		return daterange.Range{}, fmt.Errorf("both -from and -to are required")
	case opts.days > 0:
		return daterange.LastDays(now, opts.days), nil
	default:
		return dashboard.DefaultRange(ctx, client, now, cfg.Fetch.DefaultDays, logger), nil
	}
}

func comparisonPeriods(opts options, now time.Time) (daterange.Range, daterange.Range, error) {
	p1, p2 := dashboard.DefaultComparison(now)
	var err error
	if opts.p1From != "" || opts.p1To != "" {
		if p1, err = daterange.Parse(opts.p1From, opts.p1To); err != nil {
			return p1, p2, fmt.Errorf("period 1: %w", err)
		}
	}
	if opts.p2From != "" || opts.p2To != "" {
		if p2, err = daterange.Parse(opts.p2From, opts.p2To); err != nil {
			return p1, p2, fmt.Errorf("period 2: %w", err)
		}
	}
	return p1, p2, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	var opts options

	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to the configuration file")
	flag.StringVar(&opts.configPath, "c", "config.yaml", "Path to the configuration file (shorthand)")
	flag.StringVar(&opts.from, "from", "", "Start date (format: YYYY-MM-DD or DD.MM.YYYY)")
	flag.StringVar(&opts.to, "to", "", "End date (format: YYYY-MM-DD or DD.MM.YYYY)")
	flag.IntVar(&opts.days, "days", 0, "Number of days to analyze (ignored if from/to are specified)")
	flag.StringVar(&opts.devices, "devices", "", "Comma separated MAC addresses to filter charts by")
	flag.StringVar(&opts.mac, "mac", "", "MAC address for the protocol breakdown")
	flag.StringVar(&opts.p1From, "p1-from", "", "Comparison period 1 start date")
	flag.StringVar(&opts.p1To, "p1-to", "", "Comparison period 1 end date")
	flag.StringVar(&opts.p2From, "p2-from", "", "Comparison period 2 start date")
	flag.StringVar(&opts.p2To, "p2-to", "", "Comparison period 2 end date")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug output")

	showDashboard := flag.Bool("dashboard", false, "Show range totals and top devices (also shown when no other mode is set)")
	showDevices := flag.Bool("devices-table", false, "Show every device of the range")
	showProtocols := flag.Bool("protocols", false, "Show the protocol breakdown of -mac")
	showCharts := flag.Bool("charts", false, "Show daily traffic, filtered by -devices")
	showActivity := flag.Bool("activity", false, "Show the activity heatmap")
	showCompare := flag.Bool("compare", false, "Compare two periods")
	showAchievements := flag.Bool("achievements", false, "Show achievements")
	serve := flag.Bool("serve", false, "Serve the dashboard API")
	exportDigest := flag.Bool("export", false, "Export a digest of the range")
	ping := flag.Bool("ping", false, "Check that the bandwidth API answers")
	flag.Parse()

	if err := checkModes(*showDashboard, *showDevices, *showProtocols, *showCharts, *showActivity,
		*showCompare, *showAchievements, *serve, *exportDigest, *ping); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Debug = opts.debug

	logger, err := logging.New(cfg.Logging, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(reg)

	client := api.NewClient(cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := time.Now()

	if *ping {
		if err := client.Ping(ctx); err != nil {
			logger.Fatal("bandwidth API unreachable", zap.String("url", cfg.API.BaseURL), zap.Error(err))
		}
		fmt.Printf("Bandwidth API at %s is reachable\n", cfg.API.BaseURL)
		return
	}

	viewOpts := dashboard.Options{
		Aggregation: aggregator.Options{
			Policy:    aggregator.ParseNamePolicy(cfg.Devices.NamePolicy),
			Overrides: cfg.Devices.FriendlyNames,
		},
		ProtocolWorkers: cfg.Fetch.ProtocolWorkers,
	}

	if *showCompare {
		p1, p2, err := comparisonPeriods(opts, now)
		if err != nil {
			logger.Fatal("invalid comparison period", zap.Error(err))
		}
		views := dashboard.New(state.New(p2), client, viewOpts, logger, metrics)
		cmp, err := views.Compare(ctx, p1, p2)
		if err != nil {
			logger.Fatal("comparison failed", zap.Error(err))
		}
		report.Comparison(os.Stdout, cmp)
		return
	}

	rng, err := resolveRange(ctx, opts, client, cfg, now, logger)
	if err != nil {
		logger.Fatal("invalid date range", zap.Error(err))
	}
	logger.Debug("analyzing period", zap.Stringer("range", rng))

	st := state.New(rng)
	st.SetDevices(splitList(opts.devices))
	views := dashboard.New(st, client, viewOpts, logger, metrics)

	switch {
	case *serve:
		runServer(ctx, cfg, views, reg, logger)

	case *exportDigest:
		runExport(ctx, cfg, client, rng, viewOpts.Aggregation, now, logger)

	case *showProtocols:
		if opts.mac == "" {
			logger.Fatal("-protocols requires -mac")
		}
		m, err := views.Protocols(ctx, opts.mac)
		if err != nil {
			logger.Fatal("protocol breakdown failed", zap.Error(err))
		}
		report.Protocols(os.Stdout, m)

	case *showDevices:
		m := mustLoad(ctx, views.Devices, logger)
		report.Devices(os.Stdout, m)

	case *showCharts:
		m := mustLoad(ctx, views.Charts, logger)
		report.Charts(os.Stdout, m)

	case *showActivity:
		m := mustLoad(ctx, views.Activity, logger)
		report.Activity(os.Stdout, m)

	case *showAchievements:
		m := mustLoad(ctx, views.Achievements, logger)
		report.Achievements(os.Stdout, m)

	default:
		m := mustLoad(ctx, views.Dashboard, logger)
		report.Dashboard(os.Stdout, m)
	}
}

// checkModes rejects more than one mode flag; none selects the dashboard.
func checkModes(modes ...bool) error {
	n := 0
	for _, on := range modes {
		if on {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("choose one mode, got %d", n)
	}
	return nil
}

func mustLoad[T any](ctx context.Context, p *dashboard.Panel[T], logger *zap.Logger) T {
	if err := p.Refresh(ctx); err != nil {
		logger.Fatal("failed to load view", zap.String("view", p.Name()), zap.Error(err))
	}
	value, _, _ := p.Get()
	return value
}

func runServer(ctx context.Context, cfg *config.Config, views *dashboard.Views, reg *prometheus.Registry, logger *zap.Logger) {
	views.Bind(ctx)
	if err := views.RefreshAll(ctx); err != nil {
		logger.Warn("initial refresh incomplete", zap.Error(err))
	}

	srv := server.New(views, reg, logger)
	if err := srv.ListenAndServe(ctx, cfg.Server.ListenAddr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func runExport(ctx context.Context, cfg *config.Config, client *api.Client, rng daterange.Range, aggOpts aggregator.Options, now time.Time, logger *zap.Logger) {
	digest, err := export.BuildDigest(ctx, client, rng, aggOpts, now, logger)
	if err != nil {
		logger.Fatal("building digest failed", zap.Error(err))
	}

	fileSink := export.NewFileSink(cfg.Export.Dir, cfg.Export.Format)
	sinks := export.MultiSink{fileSink}

	if cfg.Export.NATS.URL != "" {
		natsSink, err := export.NewNATSSink(cfg.Export.NATS, logger)
		if err != nil {
			logger.Fatal("NATS sink unavailable", zap.Error(err))
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
	}

	if err := sinks.Publish(ctx, digest); err != nil {
		logger.Error("publishing digest failed", zap.Error(err))
		return
	}
	fmt.Printf("Digest for %s written to %s\n", rng, fileSink.Path(digest))
}
