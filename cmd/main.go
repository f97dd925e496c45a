// @title                       Fleet Dashboard API
// @version                     1.0
// @description                 Keeps the fleet dashboard panels consistent with the operator's vehicle and date selection.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "fleet_dashboard/docs"
	"fleet_dashboard/internal/analytics"
	"fleet_dashboard/internal/config"
	"fleet_dashboard/internal/dashboard"
	"fleet_dashboard/internal/handlers"
	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/overlay"
	"fleet_dashboard/internal/repository"
	"fleet_dashboard/internal/repository/db"
	"fleet_dashboard/internal/selection"
	"fleet_dashboard/internal/server"
	"fleet_dashboard/internal/service"
	"fleet_dashboard/internal/stream"
)

const (
	directoryRefresh = 10 * time.Minute
	shutdownTimeout  = 10 * time.Second
)

func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)

	sqlDB, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	backend := analytics.NewClient(cfg.Analytics.BaseURL, &http.Client{Timeout: cfg.Analytics.Timeout})

	hub := stream.NewHub()
	overlays := overlay.NewManager(stream.NewWidget(hub), overlay.Options{
		FitDelay: cfg.Dashboard.FitDelay,
		Log:      log.Named("overlay"),
	})

	activity := service.NewActivityRecorder(repos.EventRepo, cfg.Activity.Buffer, log.Named("activity"))
	snapshots := service.NewSelectionSnapshots(repos.SelectionRepo, log.Named("selection"))

	store := selection.NewStore()
	unsubscribeSnapshots := store.Subscribe(snapshots.Observe)
	defer unsubscribeSnapshots()

	controller := dashboard.New(store, backend, overlays, dashboard.Options{
		FetchTimeout: cfg.Analytics.Timeout,
		Recorder:     activity,
		Log:          log.Named("dashboard"),
	})

	services := service.NewService(repos, service.Deps{
		Controller: controller,
		Vehicles:   backend,
		Backend:    backend,
		Activity:   activity,
		Auth:       service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Log:        log,
	})
	apiHandler := handlers.NewHandler(services, hub, log.Named("http"))

	// background goroutines
	var background sync.WaitGroup
	runBackground(&background, func() { activity.Run(ctx) })
	runBackground(&background, func() { snapshots.Run(ctx) })
	runBackground(&background, func() { services.Directory.Run(ctx, directoryRefresh) })

	controller.Start(ctx)
	restoreSelection(ctx, cfg, repos.SelectionRepo, services, controller, log)

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	waitForShutdown(srv, controller, log)

	// stop background writers and let them flush
	cancel()
	background.Wait()
}

func runBackground(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening sqlite", "path", cfg.DB.Path)
	return db.InitDB(cfg.DB.Path)
}

// restoreSelection resumes the last saved selection, or selects the first
// vehicle of the fleet when auto-select is on.
func restoreSelection(ctx context.Context, cfg *config.Config, saved repository.SelectionRepo, services *service.Service, controller *dashboard.Controller, log *logger.Logger) {
	rctx, cancel := context.WithTimeout(ctx, cfg.Analytics.Timeout)
	defer cancel()

	sel, ok, err := service.InitialSelection(rctx, saved, services.Directory, cfg.Dashboard.AutoSelect)
	if err != nil {
		log.Warnw("initial_selection_failed", "err", err)
		return
	}
	if !ok {
		log.Infow("dashboard_idle", "reason", "no saved selection and no vehicle to auto-select")
		return
	}
	token := controller.Set(sel)
	log.Infow("selection_restored", "entity", sel.EntityID, "token", token)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, controller *dashboard.Controller, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// cancel fetches and tear the map layer down
	controller.Close()
}
