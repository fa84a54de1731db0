package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/99minutos/credential-service/internal/api"
	"github.com/99minutos/credential-service/internal/api/metrics"
	"github.com/99minutos/credential-service/internal/core/domain"
	"github.com/99minutos/credential-service/internal/infrastructure/config"
	"github.com/99minutos/credential-service/pkg/logger"
)

const serviceName = "credential-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad(ctx)
	root := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	if err := run(ctx, cfg, root); err != nil {
		log := logger.ForComponent("server")
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, root zerolog.Logger) error {
	log := logger.ForComponent("server")

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	e := api.NewRouter(api.RouterConfig{
		Store:          store,
		StoreBackend:   cfg.Store.Backend,
		PasswordPolicy: cfg.PasswordPolicy(),
		ConflictPolicy: cfg.Conflicts(),
		BcryptCost:     cfg.BcryptCost,
		Logger:         root,
		Metrics:        metrics.New(),
	})

	if cfg.Conflicts() == domain.ConflictLegacy {
		log.Warn().Msg("legacy conflict policy enabled: duplicate registrations are reported with 200 and stored")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("store", cfg.Store.Backend).
			Msg("listening")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
