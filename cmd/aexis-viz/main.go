package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/aexis-io/aexis/config"
	"github.com/aexis-io/aexis/core"
	"github.com/aexis-io/aexis/internal/feed"
	"github.com/aexis-io/aexis/internal/logging"
	"github.com/aexis-io/aexis/internal/observability"
	"github.com/aexis-io/aexis/timectrl"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "Path to the YAML configuration file")
	feedURL := flag.String("feed", "", "WebSocket URL of the agent feed (overrides config)")
	accelerated := flag.Bool("accelerated", false, "run frames as fast as possible (headless playback)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *feedURL != "" {
		cfg.Feed.URL = *feedURL
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	engine := core.NewEngine(core.MotionConfig{
		Deadband:       cfg.Motion.Deadband,
		CorrectionGain: cfg.Motion.CorrectionGain,
		SnapJump:       cfg.Motion.SnapJump,
	}, log, collector)

	f, err := os.Open(cfg.Topology.Path)
	if err != nil {
		log.Error(ctx, "failed to open topology", logging.String("path", cfg.Topology.Path), logging.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := engine.LoadTopology(ctx, f); err != nil {
		f.Close()
		log.Error(ctx, "failed to load topology", logging.String("error", err.Error()))
		os.Exit(1)
	}
	f.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Feed.URL != "" {
		sub := feed.NewSubscriber(cfg.Feed.URL, engine.Ingestor(), log, cfg.RedialInterval())
		go sub.Run(runCtx)
	} else {
		log.Warn(ctx, "no feed configured; agents will only appear via the API")
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	frames := timectrl.NewFrameController(cfg.FrameInterval(), mode)
	frames.AddListener(func(now time.Time, _ time.Duration) {
		engine.Frame(now)
	})
	framesDone := frames.Start(runCtx)

	server := feed.NewServer(engine, log, collector)
	httpSrv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.Router(),
	}
	go func() {
		log.Info(ctx, "serving visualizer state", logging.String("addr", cfg.Server.Listen))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http server exited", logging.String("error", err.Error()))
			stop()
		}
	}()

	<-runCtx.Done()
	log.Info(ctx, "shutting down")
	<-framesDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
