// Command galleryd shows a grid of live feeds in the terminal, or in
// headless mode streams the grid placements as YAML documents on stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/e7canasta/orion-gallery/internal/config"
	"github.com/e7canasta/orion-gallery/internal/gallery"
	"github.com/e7canasta/orion-gallery/internal/layout"
	"github.com/e7canasta/orion-gallery/internal/logging"
	"github.com/e7canasta/orion-gallery/internal/metrics"
	"github.com/e7canasta/orion-gallery/internal/render"
	"github.com/e7canasta/orion-gallery/internal/source"
	_ "github.com/e7canasta/orion-gallery/internal/source/rtsp"
	"github.com/e7canasta/orion-gallery/internal/tui"
	"github.com/e7canasta/orion-gallery/internal/view"
)

const version = "v0.1.0"

const (
	statsInterval   = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default: $GALLERY_CONFIG or built-in feeds)")
	headless := flag.Bool("headless", false, "Write placements as YAML to stdout instead of drawing the grid")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("galleryd %s\n", version)
		os.Exit(0)
	}

	if err := run(*configPath, *headless); err != nil {
		fmt.Fprintf(os.Stderr, "galleryd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, headless bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	loggers, err := logging.Init(logging.Config{
		Level:      level,
		Dir:        cfg.Log.Dir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		// the terminal belongs to the grid unless headless
		Console: cfg.Log.Console && headless,
	})
	if err != nil {
		return err
	}
	defer loggers.Shutdown()
	log := loggers.App

	log.Info("galleryd: starting",
		"version", version,
		"feeds", len(cfg.Feeds),
		"headless", headless,
		"source_kinds", source.Kinds(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewProm(reg)
	if err != nil {
		return err
	}
	tracks := metrics.NewTrackCollector()
	reg.MustRegister(tracks)

	srv := startMetricsServer(cfg.Metrics.Addr, reg, log)
	defer stopMetricsServer(srv, log)

	sources, feeds := startSources(ctx, cfg.Feeds, tracks, loggers.Media, log)
	defer stopSources(sources, log)

	opts, err := cfg.Gallery.Options()
	if err != nil {
		return err
	}
	opts.Logger = log
	opts.Metrics = recorder

	if headless {
		return runHeadless(ctx, opts, feeds, sources, log)
	}
	return runTUI(ctx, opts, feeds, cfg.UI.RefreshInterval, log)
}

// startSources builds and starts one producer per feed. A feed whose
// source cannot be built or started keeps its slot with no track, so the
// gallery shows it as an "attach failed" tile.
func startSources(ctx context.Context, feeds []config.FeedConfig, tracks *metrics.TrackCollector, mediaLog, log *slog.Logger) ([]source.Source, []tui.Feed) {
	var sources []source.Source
	out := make([]tui.Feed, 0, len(feeds))

	for _, fc := range feeds {
		sc := fc.Source()
		feed := tui.Feed{ID: sc.ID, Wants: sc.Wants()}

		src, err := source.New(sc, mediaLog)
		if err != nil {
			log.Error("galleryd: feed unavailable", "feed", sc.ID, "kind", sc.Kind, "error", err)
			out = append(out, feed)
			continue
		}
		if err := src.Start(ctx); err != nil {
			log.Error("galleryd: feed failed to start", "feed", sc.ID, "kind", sc.Kind, "error", err)
			out = append(out, feed)
			continue
		}

		sources = append(sources, src)
		tracks.Add(sc.ID, src.Track())
		feed.Track = src.Track()
		out = append(out, feed)

		log.Info("galleryd: feed started", "feed", sc.ID, "kind", sc.Kind)
	}
	return sources, out
}

func stopSources(sources []source.Source, log *slog.Logger) {
	for _, src := range sources {
		if err := src.Stop(); err != nil {
			log.Warn("galleryd: feed stop failed", "error", err)
		}
	}
	log.Info("galleryd: feeds stopped", "count", len(sources))
}

func runTUI(ctx context.Context, opts gallery.Config, feeds []tui.Feed, refresh time.Duration, log *slog.Logger) error {
	model, err := tui.New(tui.Options{
		Gallery: opts,
		Feeds:   feeds,
		Refresh: refresh,
		Title:   "galleryd " + version,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}

	// a signal ends the program without the quit key; detach what is left
	model.Gallery().RemoveAll()
	log.Info("galleryd: stopped")
	return nil
}

func runHeadless(ctx context.Context, opts gallery.Config, feeds []tui.Feed, sources []source.Source, log *slog.Logger) error {
	host := layout.NewYAMLHost(os.Stdout, log)
	defer host.Close()
	opts.Host = host

	g, err := gallery.New(opts)
	if err != nil {
		return err
	}

	for _, f := range feeds {
		g.InsertView(view.New(f.ID, f.Track, render.NewMailbox(f.ID), view.WithWants(f.Wants)))
	}
	log.Info("galleryd: headless gallery ready", "tiles", g.Len(), "columns", g.Columns())

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("galleryd: shutdown signal received")
			g.RemoveAll()
			return nil

		case <-ticker.C:
			for _, src := range sources {
				s := src.Stats()
				log.Info("galleryd: feed stats",
					"feed", src.ID(),
					"running", s.Running,
					"frames", s.Frames,
					"bytes", s.Bytes,
					"reconnects", s.Reconnects,
				)
			}
			for _, id := range g.IDs() {
				if surf := g.GetView(id); surf != nil {
					st := surf.Stats()
					log.Debug("galleryd: tile stats", "id", id, "fps", st.FPS, "rendered", st.Rendered)
				}
			}
		}
	}
}

func startMetricsServer(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("galleryd: metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("galleryd: metrics server failed", "error", err)
		}
	}()
	return srv
}

func stopMetricsServer(srv *http.Server, log *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("galleryd: metrics shutdown failed", "error", err)
	}
}
