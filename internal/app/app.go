// Package app wires the application together and manages its lifecycle.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mikallon/datacore/internal/api"
	"github.com/mikallon/datacore/internal/config"
	"github.com/mikallon/datacore/internal/db"
	"github.com/mikallon/datacore/internal/db/repository"
	"github.com/mikallon/datacore/internal/nlquery"
	"github.com/mikallon/datacore/internal/semantics"
	"github.com/mikallon/datacore/internal/service/query"
)

// App holds the assembled application and its resources.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Queries  *query.Service
	Registry *semantics.Registry

	factDB   *sql.DB
	metaDB   *sql.DB
	reloader *cron.Cron
	server   *http.Server
}

// New loads configuration, opens databases, loads the semantic catalog and
// builds the query service. Call Close to release resources.
func New() (*App, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn("config", "warning", w)
	}

	catalog, err := semantics.LoadCatalog(cfg.SemanticModelPath, cfg.MetricsPath)
	if err != nil {
		return nil, fmt.Errorf("load semantic catalog: %w", err)
	}
	registry := semantics.NewRegistry(catalog)

	factDB, err := db.OpenDuckDB(cfg.FactDBPath)
	if err != nil {
		return nil, fmt.Errorf("open fact database: %w", err)
	}

	metaDB, err := db.OpenSQLite(cfg.MetaDBPath)
	if err != nil {
		factDB.Close()
		return nil, fmt.Errorf("open metadata database: %w", err)
	}

	llm := nlquery.NewClient(cfg.LLM)
	if llm.Enabled() {
		logger.Info("llm resolver enabled", "model", cfg.LLM.Model, "endpoint", cfg.LLM.Endpoint)
	} else {
		logger.Info("llm resolver disabled, rule-based resolution only")
	}
	resolver := nlquery.NewResolver(llm, logger)

	queries := query.NewService(
		registry,
		resolver,
		query.NewDBExecutor(factDB),
		nil, // no external planner configured, compile locally
		repository.NewQueryHistoryRepo(metaDB),
		logger,
	)

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Queries:  queries,
		Registry: registry,
		factDB:   factDB,
		metaDB:   metaDB,
	}

	if cfg.ReloadSchedule != "" {
		reloader, err := registry.StartReloader(cfg.ReloadSchedule, func() (*semantics.Catalog, error) {
			return semantics.LoadCatalog(cfg.SemanticModelPath, cfg.MetricsPath)
		}, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("start catalog reloader: %w", err)
		}
		app.reloader = reloader
	}

	return app, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails. Shutdown is graceful with a 10 second deadline.
func (a *App) Run(ctx context.Context) error {
	handler := api.NewHandler(a.Queries, a.Logger)
	a.server = &http.Server{
		Addr:              a.Config.ListenAddr,
		Handler:           api.NewRouter(handler, a.Config),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening", "addr", a.Config.ListenAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases databases and stops the catalog reloader.
func (a *App) Close() {
	if a.reloader != nil {
		a.reloader.Stop()
	}
	if a.metaDB != nil {
		a.metaDB.Close()
	}
	if a.factDB != nil {
		a.factDB.Close()
	}
}
