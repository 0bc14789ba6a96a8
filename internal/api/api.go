// Package api provides the HTTP surface and main wiring for StreakBot.
//
// It exposes the Telegram webhook endpoint with its always-acknowledge
// contract, a health probe, and a small read-only admin REST surface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/StreakBot/internal/dispatch"
	"github.com/BTreeMap/StreakBot/internal/genai"
	"github.com/BTreeMap/StreakBot/internal/janitor"
	"github.com/BTreeMap/StreakBot/internal/store"
	"github.com/BTreeMap/StreakBot/internal/telegram"
)

// Default server configuration.
const (
	DefaultAddr = ":8080"
	// DefaultProcessTimeout bounds one webhook invocation's inner pipeline.
	// It sits under Telegram's own timeout with margin for network and
	// runtime slack, so the platform always sees a timely 200.
	DefaultProcessTimeout = 4500 * time.Millisecond
	shutdownTimeout       = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	DBDriver        string // "sqlite3" (default), "postgres", or "memory"
	ProcessTimeout  time.Duration
	AdminIDs        []string
	DedupRetention  time.Duration
	JanitorSchedule string
}

// Option defines a functional option for configuring the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDBDriver selects the store backend.
func WithDBDriver(driver string) Option {
	return func(o *Opts) { o.DBDriver = driver }
}

// WithProcessTimeout sets the per-event processing deadline.
func WithProcessTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ProcessTimeout = d }
}

// WithAdminIDs sets the administrator allow-list.
func WithAdminIDs(ids []string) Option {
	return func(o *Opts) { o.AdminIDs = ids }
}

// WithDedupRetention sets the dedup ledger retention window.
func WithDedupRetention(d time.Duration) Option {
	return func(o *Opts) { o.DedupRetention = d }
}

// WithJanitorSchedule sets the dedup purge cron schedule.
func WithJanitorSchedule(spec string) Option {
	return func(o *Opts) { o.JanitorSchedule = spec }
}

// Server ties the store, dispatcher, and HTTP surface together.
type Server struct {
	store          store.Store
	dispatcher     *dispatch.Dispatcher
	processTimeout time.Duration
	startedAt      time.Time
}

// NewServer creates a Server around an existing store and dispatcher.
func NewServer(st store.Store, d *dispatch.Dispatcher, processTimeout time.Duration) *Server {
	if processTimeout <= 0 {
		processTimeout = DefaultProcessTimeout
	}
	return &Server{
		store:          st,
		dispatcher:     d,
		processTimeout: processTimeout,
		startedAt:      time.Now(),
	}
}

// Routes registers the server's handlers on a mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/channels", s.channelsHandler)
	mux.HandleFunc("/replies", s.repliesHandler)
	mux.HandleFunc("/stats", s.statsHandler)
}

// Run wires all modules from options and serves until SIGINT/SIGTERM.
func Run(storeOpts []store.Option, tgOpts []telegram.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	st, err := openStore(cfg.DBDriver, storeOpts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bot, err := telegram.NewBot(tgOpts...)
	if err != nil {
		return fmt.Errorf("init telegram adapter: %w", err)
	}

	dispatcher := dispatch.New(st, bot, cfg.AdminIDs)
	if gaClient, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Info("GenAI motivation fallback disabled", "reason", err)
	} else {
		dispatcher.SetMotivationGenerator(gaClient)
	}

	jan := janitor.New(st, cfg.DedupRetention, cfg.JanitorSchedule)
	if err := jan.Start(); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	defer jan.Stop()

	srv := NewServer(st, dispatcher, cfg.ProcessTimeout)
	mux := http.NewServeMux()
	srv.Routes(mux)

	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("StreakBot API listening", "addr", cfg.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
	case sig := <-sigCh:
		slog.Info("Shutting down on signal", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("http shutdown failed: %w", err)
		}
	}
	return nil
}

// openStore selects the backend by driver name.
func openStore(driver string, opts []store.Option) (store.Store, error) {
	switch driver {
	case "postgres":
		return store.NewPostgresStore(opts...)
	case "memory":
		return store.NewInMemoryStore(), nil
	case "", "sqlite3":
		return store.NewSQLiteStore(opts...)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
