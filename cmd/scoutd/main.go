// Scout research server: tracks assistant sessions, decides when to
// research autonomously, runs the research crew, and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/assistkit/scout/pkg/api"
	"github.com/assistkit/scout/pkg/assessor"
	"github.com/assistkit/scout/pkg/cleanup"
	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/coordinator"
	"github.com/assistkit/scout/pkg/crew"
	"github.com/assistkit/scout/pkg/database"
	"github.com/assistkit/scout/pkg/embedding"
	"github.com/assistkit/scout/pkg/events"
	"github.com/assistkit/scout/pkg/llm"
	"github.com/assistkit/scout/pkg/masking"
	"github.com/assistkit/scout/pkg/memory"
	"github.com/assistkit/scout/pkg/queue"
	"github.com/assistkit/scout/pkg/scrape"
	"github.com/assistkit/scout/pkg/services"
	"github.com/assistkit/scout/pkg/session"
	"github.com/assistkit/scout/pkg/specialist"
	"github.com/assistkit/scout/pkg/store"
	"github.com/assistkit/scout/pkg/version"
	"github.com/assistkit/scout/pkg/watcher"
)

const (
	httpShutdownTimeout = 5 * time.Second
	wsWriteTimeout      = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "scout.yaml", "Path to configuration file")
	host := flag.String("host", "", "Listen host (overrides config)")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(version.Full() + "\n")
		return
	}

	setupLogging(*debug)

	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	slog.Info("Starting scout", "version", version.Full(), "config", *configPath)

	// 1. Configuration
	cfg, err := config.Initialize(*configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx := context.Background()

	// 2. Embedded database (runs migrations)
	dbClient, err := database.NewClient(ctx, database.Config{
		Path:          cfg.Database.Path,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
	})
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database", "error", err)
		}
	}()

	// 3. Embedding engine. Optional: without it recall is keyword-only.
	var embedder store.Embedder
	engine, err := embedding.NewGenAIEngine(ctx, cfg.Embedding)
	if err != nil {
		slog.Warn("Embedding unavailable, recall is keyword-only", "error", err)
	} else {
		embedder = engine
		defer func() {
			if err := engine.Close(); err != nil {
				slog.Error("Error closing embedding engine", "error", err)
			}
		}()
	}

	st := store.New(dbClient, store.Options{
		Embedder:      embedder,
		CacheTTL:      cfg.Cache.URLTTL.Std(),
		CacheMaxBytes: cfg.Cache.URLMaxBytes,
	})

	// 4. LLM client. Required: the coordinator and watcher cannot run
	// without it, and a service that can never research is misconfigured.
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}

	// 5. Events, sessions, research components
	bus := events.NewBus()
	hub := events.NewHub(bus, wsWriteTimeout)
	tracker := session.NewTracker(cfg.Sessions)

	fetcher := scrape.NewFetcher(st, cfg.Tools)
	specialists := specialist.BuildSpecialists(cfg.Tools, fetcher)
	crewSpecialists := make(map[string]crew.Specialist, len(specialists))
	names := make([]string, 0, len(specialists))
	for name, sp := range specialists {
		crewSpecialists[name] = sp
		names = append(names, name)
	}
	sort.Strings(names)

	coord := coordinator.New(llmClient, names)
	bridge := memory.Open(cfg.Memory, st)
	researchCrew := crew.New(coord, crewSpecialists, st, bridge, bus, cfg.Crew)
	researchCrew.SetAssessor(assessor.New(st))
	w := watcher.New(llmClient, tracker, st, bus, cfg.Research)

	// 6. Task queue (recovers orphaned tasks, then starts admitting)
	scheduler := queue.New(st, researchCrew, bus, cfg.Queue)
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("Failed to start task queue", "error", err)
		os.Exit(1)
	}

	// 7. Retention worker
	cleaner := cleanup.NewService(cfg.Retention, st, tracker, cfg.Sessions.IdleTTL.Std())
	cleaner.Start(ctx)

	// 8. HTTP server
	masker := masking.NewMasker(cfg.Masking, cfg.MaskingEnabled())
	srv := api.NewServer(
		services.NewResearchService(scheduler, researchCrew, st),
		services.NewSessionService(tracker, w),
		services.NewStatusService(st, scheduler, tracker, cfg.LLM.Provider),
		tracker,
		w,
		masker,
		hub,
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("Scout started",
		"specialists", names,
		"vector_recall", st.IsVectorReady(),
		"memory_bridge", bridge.Enabled())

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Staged shutdown: stop accepting requests, drain the queue, stop
	// the retention loop, then release external handles.
	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	cleaner.Stop()
	bus.Close()
	if err := bridge.Close(); err != nil {
		slog.Error("Error closing memory bridge", "error", err)
	}

	slog.Info("Shutdown complete")
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
