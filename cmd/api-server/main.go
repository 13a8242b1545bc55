// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-access/internal/apiserver/app"
	"campus-access/internal/apiserver/server"
	"campus-access/internal/config"
	"campus-access/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，按 APP_ENV 叠加 YAML）
	cfg, err := config.Load()
	if err != nil {
		logging.Default("api-server").WithError(err).Error("Failed to load config")
		os.Exit(1)
	}

	cfg.Log.Component = "api-server"
	log := logging.New(cfg.Log)
	log.Info("Starting API Server...", "env", cfg.Env, "config_from", cfg.LoadedFrom())
	log.Info("Config loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize")
		os.Exit(1)
	}
	defer a.Close()
	log.Info("Infrastructure ready", "driver", cfg.Database.Driver, "events", cfg.Events.Backend)

	deps := server.Deps{
		Store:         a.Infra.Store,
		Lifecycle:     a.Lifecycle,
		Authenticator: a.Authenticator,
		Bus:           a.Infra.Bus,
		Suggester:     a.Suggester,
		Registry:      a.Registry,
		Logger:        log.Named("api"),
	}
	if a.Infra.Archive != nil {
		deps.Archive = a.Infra.Archive
	}
	h := server.NewHandler(deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down server...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer done()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Server shutdown error")
		}
	}()

	log.Info("API Server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Server error")
		os.Exit(1)
	}

	log.Info("Server stopped")
}
