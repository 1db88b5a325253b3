package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noteboard/realtime/internal/config"
	"github.com/noteboard/realtime/internal/devstore"
	"github.com/noteboard/realtime/internal/eventbus"
	"github.com/noteboard/realtime/internal/logging"
	"github.com/noteboard/realtime/pkg/admit"
	"github.com/noteboard/realtime/pkg/domain"
	"github.com/noteboard/realtime/pkg/registry"
)

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.LoadOptions{
		Path:        os.Getenv("REALTIME_CONFIG_PATH"),
		Environment: os.Getenv("REALTIME_ENV"),
	})
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging)

	events := eventbus.NewInMemoryBus(256)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events.Start(ctx)
	events.SubscribeAll(func(e *eventbus.Event) {
		logger.Debug("event", "type", e.Type, "source", e.Source)
	})

	store := devstore.New()
	seedDevNote(store)

	reg := registry.New(logger, events)
	admitter := admit.New(
		store, store, store, store, store,
		reg,
		cfg.Session.CookieName,
		cfg.Session.Secret,
		cfg.KeepAlive.Interval,
		logger,
		events,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/realtime/", admitter)

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", "error", err)
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	logger.Info("signal caught, shutting down", "signal", sig.String())

	cancel()
	events.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed, forcing close", "error", err)
		_ = httpServer.Close()
	}

	wg.Wait()
	return nil
}

// seedDevNote registers a single session/user/note triple so a client
// can connect to this process without a real host application behind
// it. Remove once pkg/admit.Admitter is wired to production services.
func seedDevNote(store *devstore.Store) {
	user := &domain.User{ID: "dev-user", Username: "dev"}
	note := &domain.Note{ID: "note-1", Alias: "note-1"}
	store.Seed("dev-session", user, note, "# Hello\n")
}
