package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"firewatch/api"
	"firewatch/client"
	"firewatch/config"
	"firewatch/fields"
	"firewatch/tools"
)

// shutdownGrace bounds how long draining in-flight requests may take.
const shutdownGrace = 10 * time.Second

// App wires configuration, logging, the MSP client, the tool service and
// the HTTP server into one runnable unit.
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	Service *tools.Service
	server  *api.Server
}

// NewApp initializes the application.
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		log.Info("no config file found, using defaults and env vars")
	}
	if cfg.MSP.Token == "" {
		log.Warn("no MSP token configured, upstream requests will be rejected")
	}

	registry := fields.NewRegistry()
	if cfg.Search.FieldOverrides != "" {
		if err := registry.LoadOverrides(cfg.Search.FieldOverrides); err != nil {
			return nil, fmt.Errorf("failed to load field overrides: %w", err)
		}
		log.Info("field overrides loaded", zap.String("path", cfg.Search.FieldOverrides))
	}

	msp := client.New(cfg, log)
	service := tools.NewService(msp, msp, registry, cfg, log)

	return &App{
		Config:  cfg,
		Log:     log,
		Service: service,
		server:  api.NewServer(service, cfg, log),
	}, nil
}

// Run serves until a termination signal arrives, then drains.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.Log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown did not complete cleanly: %w", err)
	}

	_ = a.Log.Sync()
	return nil
}
