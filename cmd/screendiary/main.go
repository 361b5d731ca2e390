// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/screendiary/screendiary/internal/archive"
	"github.com/screendiary/screendiary/internal/capture"
	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/imaging"
	xlog "github.com/screendiary/screendiary/internal/log"
	"github.com/screendiary/screendiary/internal/pipeline"
	"github.com/screendiary/screendiary/internal/store"
)

var (
	version   = "v1.2.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "status":
			os.Exit(runStatusCLI(os.Args[2:]))
		case "search":
			os.Exit(runSearchCLI(os.Args[2:]))
		case "report":
			os.Exit(runReportCLI(os.Args[2:]))
		case "frame":
			os.Exit(runFrameCLI(os.Args[2:]))
		case "timeline":
			os.Exit(runTimelineCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (TOML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xlog.Configure(xlog.Config{Level: "info", Service: "screendiary", Version: version})
	logger := xlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	xlog.Configure(xlog.Config{Level: cfg.Logging.Level, Service: "screendiary", Version: version})

	if cfg.Source != "" {
		logger.Info().Str("event", "config.loaded").Str("source", "file").Str("path", cfg.Source).Msg("loaded configuration from file")
	} else {
		logger.Info().Str("event", "config.loaded").Str("source", "defaults").Msg("loaded configuration defaults")
	}

	if err := performStartupChecks(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify required tools are installed.")
	}

	for _, dir := range []string{cfg.Storage.ScreenshotsDir(), cfg.Storage.ArchiveDir(), cfg.Storage.FrameCacheDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logger.Fatal().Err(err).Str("event", "startup.dirs_failed").Str("dir", dir).Msg("failed to create data directory")
		}
	}

	st, err := store.Open(cfg.Storage.DBPath())
	if err != nil {
		logger.Fatal().Err(err).Str("event", "startup.store_failed").Msg("failed to open store")
	}
	defer func() { _ = st.Close() }()

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("starting screendiary")
	logger.Info().Msgf("→ Data dir: %s", cfg.Storage.DataDir)
	logger.Info().Msgf("→ Capture: every %ds, dedup threshold %.2f", cfg.Capture.Interval, cfg.Capture.SimilarityThreshold)
	logger.Info().Msgf("→ Archive: after %dmin into %dmin H.265 segments (crf %d, preset %s)",
		cfg.Storage.ArchiveAfterMinutes, cfg.Storage.SegmentDurationMinutes, cfg.Storage.H265CRF, cfg.Storage.H265Preset)
	logger.Info().Msgf("→ Storage budget: %d GB", cfg.Storage.MaxStorageGB)
	logger.Info().Msgf("→ OCR: %s (psm %d, %d workers)", cfg.OCR.Languages, cfg.OCR.PSM, cfg.OCR.Workers)
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		logger.Info().Msgf("→ AI: %s (embeddings: %s, chat: %s)", cfg.AI.APIBase, cfg.AI.EmbeddingModel, cfg.AI.ChatModel)
	} else {
		logger.Info().Msg("→ AI: disabled")
	}

	// Wiring.
	var encoder imaging.FrameEncoder
	if cfg.Storage.Format == "png" {
		encoder = &imaging.PNGEncoder{}
	} else {
		encoder = imaging.NewFFmpegWebPEncoder("")
	}

	var embedder *pipeline.Embedder
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		embedder = pipeline.NewEmbedder(cfg.AI.APIBase, cfg.AI.APIKey, cfg.AI.EmbeddingModel)
	}
	engine := pipeline.NewTesseract("", cfg.OCR.Languages, cfg.OCR.PSM)
	proc := pipeline.New(cfg, st, engine, embedder)

	loop := capture.NewLoop(cfg, st,
		capture.NewSpectacle(cfg.Capture.Tool),
		capture.NewXrandr(""),
		capture.NewKWinProber(),
		capture.NewHistoryResolver(),
		encoder, proc)

	ffmpeg := archive.NewFFmpeg("", cfg.Storage.H265CRF, cfg.Storage.H265Preset)
	archiver := archive.NewArchiver(cfg, st, ffmpeg)

	// SIGUSR1 pauses capture, SIGUSR2 resumes it.
	pauseCh := make(chan os.Signal, 1)
	signal.Notify(pauseCh, syscall.SIGUSR1, syscall.SIGUSR2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return proc.Run(gctx) })
	g.Go(func() error { return archiver.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-pauseCh:
				if sig == syscall.SIGUSR1 {
					loop.Pause()
				} else {
					loop.Resume()
				}
			}
		}
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Listen) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon failed")
	}
	logger.Info().Msg("daemon exiting")
}

// performStartupChecks verifies all external tools up front so a missing
// binary fails at start, not mid-capture.
func performStartupChecks(cfg config.Config) error {
	required := []string{cfg.Capture.Tool, "tesseract", "ffmpeg", "xrandr"}
	var missing []string
	for _, bin := range required {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
