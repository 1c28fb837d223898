package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/journal"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/reactive"
	"git.home.luguber.info/inful/sitebuilder/internal/storage"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitebuilder.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output string `short:"o" help:"Output directory override"`
	} `cmd:"" help:"Render the site once and exit"`

	Watch struct {
		Output string        `short:"o" help:"Output directory override"`
		Rescan time.Duration `help:"Interval for periodic full rescans (0 disables)" default:"0"`
	} `cmd:"" help:"Build continuously, rebuilding on file changes"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a default configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// .env is optional; environment beats dotfile.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild(logger)
	case "watch":
		err = runWatch(logger)
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	default:
		err = fmt.Errorf("unknown command: %s", ctx.Command())
	}
	if err != nil {
		logger.Error("command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func loadConfig(outputOverride string) (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if outputOverride != "" {
		cfg.Output.Dir = outputOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// assemble builds the pipeline and its collaborators from config. The
// returned cleanup closes everything the pipeline borrowed.
func assemble(cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) (*pipeline.Pipeline, func(), error) {
	store, err := storage.NewFSStore(cfg.Output.Dir)
	if err != nil {
		return nil, nil, err
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		n, err := notify.NewNATSNotifier(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
		if err != nil {
			return nil, nil, err
		}
		notifier = n
	}

	var j *journal.Journal
	if cfg.Journal.Enabled {
		j, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			_ = notifier.Close()
			return nil, nil, err
		}
	}

	rt := reactive.New(
		reactive.WithLogger(logger),
		reactive.WithObserver(metrics.NewGraphObserver(rec)),
	)
	p, err := pipeline.New(rt, pipeline.Options{
		Config:   cfg,
		Store:    store,
		Notifier: notifier,
		Journal:  j,
		Recorder: rec,
		Logger:   logger,
	})
	if err != nil {
		_ = notifier.Close()
		if j != nil {
			_ = j.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		_ = notifier.Close()
		if j != nil {
			_ = j.Close()
		}
		_ = store.Close()
	}
	return p, cleanup, nil
}

func runBuild(logger *slog.Logger) error {
	cfg, err := loadConfig(CLI.Build.Output)
	if err != nil {
		return err
	}

	p, cleanup, err := assemble(cfg, logger, metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return p.Build(ctx)
}

func runWatch(logger *slog.Logger) error {
	cfg, err := loadConfig(CLI.Watch.Output)
	if err != nil {
		return err
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
		go serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	p, cleanup, err := assemble(cfg, logger, rec)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if CLI.Watch.Rescan > 0 {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(CLI.Watch.Rescan),
			gocron.NewTask(func() {
				if err := p.Source().Scan(); err != nil {
					logger.Warn("periodic rescan failed", logfields.Error(err))
				}
			}),
			gocron.WithName("periodic-rescan"),
		)
		if err != nil {
			return fmt.Errorf("schedule rescan: %w", err)
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()
		logger.Info("periodic rescan scheduled", slog.Duration("interval", CLI.Watch.Rescan))
	}

	err = p.Watch(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func serveMetrics(addr string, reg *prom.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	logger.Info("metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", logfields.Error(err))
	}
}

func runInit(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	slog.Info("configuration written", logfields.Path(path))
	return nil
}
