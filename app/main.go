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

	"github.com/lysyi3m/rss-deck/app/ai"
	"github.com/lysyi3m/rss-deck/app/api"
	"github.com/lysyi3m/rss-deck/app/cfg"
	"github.com/lysyi3m/rss-deck/app/database"
	"github.com/lysyi3m/rss-deck/app/deck"
	"github.com/lysyi3m/rss-deck/app/feed"
	"github.com/lysyi3m/rss-deck/app/store"
	"github.com/lysyi3m/rss-deck/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RSS Deck server", "version", appConfig.Version, "timezone", appConfig.Timezone)

	ctx := context.Background()

	var backend store.Backend
	var runs *database.RunRepository

	if appConfig.DBPath != "" {
		slog.Info("Opening database", "path", appConfig.DBPath)
		db, err := database.Open(appConfig.DBPath)
		if err != nil {
			slog.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("Database ready", "migration_version", version, "dirty", dirty)

		snapshots := database.NewSnapshotRepository(db)
		if savedAt, err := snapshots.UpdatedAt(ctx, appConfig.Namespace); err == nil && savedAt != nil {
			slog.Info("Found saved state", "namespace", appConfig.Namespace, "saved_at", savedAt.Format(time.RFC3339))
		}

		backend = snapshots
		runs = database.NewRunRepository(db)
	} else {
		slog.Warn("DB_PATH not set, state will not survive a restart")
		backend = store.NewMemoryBackend()
	}

	st := store.New(backend, appConfig.Namespace)
	if err := st.Load(ctx); err != nil {
		slog.Error("Failed to load saved state", "namespace", appConfig.Namespace, "error", err)
		os.Exit(1)
	}

	if appConfig.FeedsFile != "" {
		seedSubscriptions(ctx, st, appConfig.FeedsFile)
	}

	httpClient := &http.Client{Timeout: appConfig.GetFetchTimeout()}
	directGateway := feed.NewHTTPGateway(httpClient, feed.NewParser(), appConfig.UserAgent)

	var aggregatorGateway feed.Gateway = directGateway
	if appConfig.FeedProxyURL != "" {
		slog.Info("Fetching feeds through proxy", "proxy", appConfig.FeedProxyURL)
		aggregatorGateway = feed.NewProxyGateway(httpClient, appConfig.FeedProxyURL, appConfig.UserAgent)
	}

	assistant := ai.NewClient(&http.Client{Timeout: appConfig.GetAITimeout()},
		appConfig.OllamaHost, appConfig.OllamaModel, appConfig.OllamaCommand, appConfig.AIRateLimit)

	newsDeck := deck.New(st, feed.NewAggregator(aggregatorGateway), assistant)

	slog.Info("Starting background scheduler",
		"workers", appConfig.WorkerCount,
		"refresh_interval", appConfig.GetRefreshInterval().String())
	scheduler := tasks.NewScheduler(newsDeck, appConfig.WorkerCount, appConfig.GetRefreshInterval())
	newsDeck.SetRefreshTrigger(scheduler.RefreshNow)

	var runLister api.RunListerInterface
	if runs != nil {
		newsDeck.SetRunRecorder(runs)
		runLister = runs
	}

	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(newsDeck, directGateway, feed.NewGenerator(appConfig.Version),
		assistant, scheduler, runLister)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appConfig.GetAITimeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("RSS Deck server shutdown complete")
}

// seedSubscriptions adds the feeds listed in path to the saved
// subscriptions. Feeds already subscribed are left alone.
func seedSubscriptions(ctx context.Context, st *store.Store, path string) {
	urls, err := feed.LoadSubscriptions(path)
	if err != nil {
		slog.Warn("Failed to load subscriptions file", "path", path, "error", err)
		return
	}

	added := 0
	for _, u := range urls {
		ok, err := st.AddSubscription(ctx, u)
		if err != nil {
			slog.Warn("Failed to seed subscription", "url", u, "error", err)
			continue
		}
		if ok {
			added++
		}
	}

	slog.Info("Subscriptions seeded", "path", path, "listed", len(urls), "added", added)
}
