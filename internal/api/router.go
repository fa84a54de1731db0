package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/credential-service/docs"
	"github.com/99minutos/credential-service/internal/api/handler"
	"github.com/99minutos/credential-service/internal/api/metrics"
	"github.com/99minutos/credential-service/internal/api/middleware"
	"github.com/99minutos/credential-service/internal/core/domain"
	"github.com/99minutos/credential-service/internal/core/ports"
	"github.com/99minutos/credential-service/internal/core/service"
	"github.com/99minutos/credential-service/pkg/logger"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Store          ports.CredentialStore
	StoreBackend   string
	PasswordPolicy domain.PasswordPolicy
	ConflictPolicy domain.ConflictPolicy
	BcryptCost     int
	Logger         zerolog.Logger
	// Metrics is optional; nil disables /metrics and HTTP instrumentation.
	Metrics *metrics.Metrics
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator(cfg.PasswordPolicy)
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(cfg.Logger))

	var recorder service.Recorder
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.Middleware())
		e.GET("/metrics", cfg.Metrics.Handler())
		recorder = cfg.Metrics
	}

	// --- Dependencies ---
	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	credService := service.NewCredentialService(
		cfg.Store,
		hasher,
		cfg.ConflictPolicy,
		recorder,
		logger.WithComponent(cfg.Logger, "credentials"),
	)
	credHandler := handler.NewCredentialHandler(credService)

	// --- Credential routes ---
	e.POST("/register", credHandler.Register)
	e.POST("/login", credHandler.Login)

	// --- Health probes ---
	backend := cfg.StoreBackend
	if backend == "" {
		backend = "store"
	}
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(map[string]handler.Pinger{backend: cfg.Store})

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
