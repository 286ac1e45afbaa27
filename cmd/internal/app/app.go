// Package app wires the assistant runtime: config, logging, the bank
// core, the tool registry, the chat orchestrator, and the HTTP/WS
// surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	accountsvc "bankassist/cmd/internal/accounts"
	"bankassist/cmd/internal/auth"
	"bankassist/cmd/internal/bank"
	"bankassist/cmd/internal/chat"
	"bankassist/cmd/internal/llm"
	"bankassist/cmd/internal/mobileauth"
	"bankassist/cmd/internal/realtime"
	"bankassist/cmd/internal/tools"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the assistant runtime: it owns the HTTP server wiring and the
// lifecycles of the DB pool and chat orchestrator.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	bot     *chat.Bot
	api     *chatAPI
	ws      *realtime.WSGateway
	metrics *Metrics
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	bankClient, dbPool, err := newBankClient(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	authSvc := auth.NewService(log, bankClient)
	accounts := accountsvc.NewService(log, bankClient)
	mobileAuth := mobileauth.NewService(log, bankClient)

	registry := tools.NewRegistry(log)
	registry.Register(authSvc)
	registry.Register(accounts)
	registry.Register(mobileAuth)

	prompts := chat.LoadPrompts(log, cfg.PromptDir)
	domains := cfg.Domains
	if len(domains) == 0 {
		domains = registry.Domains()
	}

	provider := llm.NewOpenAI(log, cfg.OpenAIKey, cfg.OpenAIModel)

	// Metrics and bot reference each other (gauge polls the bot, hooks
	// feed counters), so wire hooks after both exist.
	var metrics *Metrics
	bot := chat.NewBot(chat.Config{
		Log:          log,
		Provider:     provider,
		Registry:     registry,
		Tracker:      auth.NewTracker(log),
		Auth:         authSvc,
		Accounts:     accounts,
		MobileAuth:   mobileAuth,
		SystemPrompt: prompts.Compose(domains),
		Domains:      domains,
		Hooks: chat.Hooks{
			SessionsExpired: func(n int) { metrics.SessionsExpired(n) },
			Authenticated:   func() { metrics.SessionAuthenticated() },
			SessionEnded:    func() { metrics.SessionEnded() },
		},
	})
	metrics = NewMetrics(bot.ActiveSessions)

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbPool != nil,
		bot:       bot,
		api:       &chatAPI{log: log, bot: bot, metrics: metrics},
		ws: realtime.NewWSGateway(log, bot, realtime.Options{
			DevInsecure:       cfg.WSDevInsecure,
			OriginAllowAll:    cfg.WSOriginAllowAll,
			AllowedOrigins:    cfg.WSAllowedOrigins,
			WriteTimeout:      cfg.WSWriteTimeout,
			ReadIdleTimeout:   cfg.WSReadIdleTimeout,
			HeartbeatInterval: cfg.WSHeartbeatInterval,
			HeartbeatTimeout:  cfg.WSHeartbeatTimeout,
			RateEvents:        cfg.WSRateEvents,
			RateWindow:        cfg.WSRateWindow,
		}),
		metrics:   metrics,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.api, a.ws, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log, a.metrics),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 60*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "bank_backend", a.cfg.BankBackend)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newBankClient selects the account core by backend. The app owns the
// pool lifecycle; the Postgres client holds a borrowed reference.
func newBankClient(ctx context.Context, cfg Config, log Logger) (bank.Client, *pgxpool.Pool, error) {
	switch cfg.BankBackend {
	case BankBackendMemory, "":
		log.Info("bank.backend", "mode", "memory")
		return bank.NewMemoryClient(log), nil, nil

	case BankBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("bank backend postgres requires BANKASSIST_DATABASE_URL")
		}
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		client, err := bank.NewPostgresClient(pool, bank.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("bank.backend", "mode", "postgres", "schema", cfg.DBSchema)
		return client, pool, nil

	case BankBackendHTTP:
		if cfg.BankAPIBase == "" {
			return nil, nil, errors.New("bank backend http requires BANKASSIST_BANK_API_BASE")
		}
		log.Info("bank.backend", "mode", "http", "base", cfg.BankAPIBase)
		return bank.NewHTTPClient(log, cfg.BankAPIBase, cfg.BankAPISecret, cfg.BankAPITimeout), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown bank backend: %q", cfg.BankBackend)
	}
}
