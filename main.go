package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tunnelgate/panel/internal/config"
	"github.com/tunnelgate/panel/internal/corerun"
	"github.com/tunnelgate/panel/internal/corespec"
	"github.com/tunnelgate/panel/internal/database"
	"github.com/tunnelgate/panel/internal/handlers"
	"github.com/tunnelgate/panel/internal/logging"
	"github.com/tunnelgate/panel/internal/nodeapi"
	"github.com/tunnelgate/panel/internal/reset"
)

func main() {
	config.Load()
	logging.Init()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	overrides, err := config.LoadCoreOverrides()
	if err != nil {
		log.Fatalf("Cores config: %v", err)
	}

	// One lifecycle manager per core, each owning its own config directory.
	backends := corerun.Backends(overrides)
	managers := make([]*corerun.Manager, 0, len(backends))
	for _, core := range corespec.Cores() {
		mgr, err := corerun.NewManager(backends[core], config.Cfg.DataPath)
		if err != nil {
			log.Fatalf("Init %s manager: %v", core, err)
		}
		managers = append(managers, mgr)
	}
	registry := corerun.NewRegistry(managers...)

	timeout, err := time.ParseDuration(config.Cfg.NodeAPITimeout)
	if err != nil {
		timeout = 10 * time.Second
	}
	nodeClient := nodeapi.NewHTTPClient(config.Cfg.NodeAPIURL, timeout)

	orch := reset.New(registry, nodeClient)

	handlers.Managers = registry
	handlers.NodeClient = nodeClient
	handlers.ResetOrch = orch

	scheduler := reset.StartScheduler(context.Background(), orch)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Core health and reset surface
	r.Get("/health", handlers.GetCoreHealth)
	r.Get("/health/stream", handlers.HealthStream)
	r.Get("/reset-config", handlers.GetResetConfigs)
	r.Put("/reset-config/{core}", handlers.UpdateResetConfig)
	r.Post("/reset/{core}", handlers.ResetCore)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tunnels", handlers.ListTunnels)
		r.Post("/tunnels", handlers.CreateTunnel)
		r.Get("/tunnels/{id}", handlers.GetTunnelState)
		r.Post("/tunnels/{id}/start", handlers.StartTunnel)
		r.Post("/tunnels/{id}/stop", handlers.StopTunnel)

		r.Get("/nodes", handlers.ListNodes)
		r.Post("/nodes", handlers.CreateNode)

		r.Get("/logs", handlers.GetServerLogs)
		r.Delete("/logs", handlers.ClearServerLogs)
	})

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	scheduler.Stop()
	registry.CleanupAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
