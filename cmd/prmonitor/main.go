package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/prmonitor/internal/adapter/driven/github"
	slackadapter "github.com/ericfisherdev/prmonitor/internal/adapter/driven/slack"
	sqliteadapter "github.com/ericfisherdev/prmonitor/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/prmonitor/internal/adapter/driving/http"
	"github.com/ericfisherdev/prmonitor/internal/adapter/driving/ws"
	"github.com/ericfisherdev/prmonitor/internal/application"
	"github.com/ericfisherdev/prmonitor/internal/config"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire persistence adapters.
	prStore := sqliteadapter.NewPRRepo(db)
	subStore := sqliteadapter.NewSubscriptionRepo(db)
	statsStore := sqliteadapter.NewStatsRepo(db)
	assocStore := sqliteadapter.NewAssociationRepo(db)

	// 6. Load persisted subscriptions into the registry.
	registry := application.NewSubscriptionRegistry(subStore)
	if err := registry.Load(ctx); err != nil {
		return err
	}

	// 7. Live-update hub and optional Slack notifier.
	hub := ws.NewHub()

	var notifier driven.Notifier
	if cfg.SlackWebhookURL != "" {
		notifier = slackadapter.NewNotifier(cfg.SlackWebhookURL)
		slog.Info("slack notifications enabled")
	}

	// 8. Create the monitor service.
	provider := application.NewGitHubClientProvider()
	monitor := application.NewMonitorService(
		provider,
		registry,
		prStore,
		statsStore,
		assocStore,
		hub,
		notifier,
		cfg.GitHubTeamSlugs,
		cfg.PollInterval,
	)

	// 9. Install the configured credential, if any. With both token and
	// username configured the viewer identity comes from the environment and
	// polling starts without a validation round-trip. A token alone is
	// validated to discover the login; a failed validation is not fatal,
	// polling stays inactive until a token arrives via the API.
	switch {
	case cfg.HasGitHubCredentials():
		identity := driven.Identity{Login: cfg.GitHubUsername, TeamSlugs: cfg.GitHubTeamSlugs}
		provider.Replace(githubadapter.NewClient(cfg.GitHubToken), identity)
		slog.Info("github credential installed from environment", "login", identity.Login)
	case cfg.GitHubToken != "":
		if identity, err := monitor.InstallCredential(ctx, githubadapter.NewClient(cfg.GitHubToken)); err != nil {
			slog.Warn("configured github token rejected, polling disabled until a token is provided via the API", "error", err)
		} else {
			slog.Info("github credential validated", "login", identity.Login)
		}
	default:
		slog.Info("no github token configured, polling disabled until a token is provided via the API")
	}

	go monitor.Start(ctx)

	// 10. HTTP handler and routes.
	clientFactory := func(token string) driven.GitHubClient {
		return githubadapter.NewClient(token)
	}
	apiHandler := httphandler.NewHandler(monitor, prStore, statsStore, hub, clientFactory, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("prmonitor started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
		"teams", cfg.GitHubTeamSlugs,
	)

	// 11. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
