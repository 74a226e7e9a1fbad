package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbertolli/convopulse/internal/config"
	"github.com/mbertolli/convopulse/internal/dialogue"
	"github.com/mbertolli/convopulse/internal/embed"
	"github.com/mbertolli/convopulse/internal/httpapi"
	"github.com/mbertolli/convopulse/internal/observability"
	"github.com/mbertolli/convopulse/internal/session"
	"github.com/mbertolli/convopulse/internal/store"
	"github.com/mbertolli/convopulse/internal/topics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	snapshots, err := store.NewStore(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("snapshot store init failed: %v", err)
	}
	defer snapshots.Close()

	embedder, err := embed.New(ctx, embed.Config{
		Provider:       cfg.EmbedProvider,
		OllamaEndpoint: cfg.OllamaEndpoint,
		OllamaModel:    cfg.OllamaModel,
		GenAIAPIKey:    cfg.GenAIAPIKey,
		GenAIModel:     cfg.GenAIModel,
	})
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	defer embedder.Close()
	log.Printf("embedder: %s (%d dims)", embedder.Name(), embedder.Dimensions())

	extractor := topics.NewHeuristicExtractor()
	trackerCfg := dialogue.TrackerConfig{
		WindowSize:     cfg.WindowSize,
		FragmentTurns:  cfg.FragmentTurns,
		FragmentMaxGap: cfg.FragmentMaxGap,
		FragmentMaxLen: cfg.FragmentMaxLen,
		CoherenceTurns: cfg.CoherenceTurns,
		QALowWater:     cfg.QALowWater,
	}

	sessions := session.NewManager(func() *dialogue.Tracker {
		return dialogue.NewTracker(embedder, extractor, trackerCfg)
	}, cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	api := httpapi.New(cfg, sessions, snapshots, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
