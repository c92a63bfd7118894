package httpapi

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/metrics"
	"github.com/septivank/city-signals/internal/nearby"
	"github.com/septivank/city-signals/internal/service"
	"go.uber.org/zap"
)

// Config holds the HTTP server settings
type Config struct {
	Port   int
	Limits nearby.Limits
}

// Server is the public HTTP API
type Server struct {
	app        *fiber.App
	cfg        Config
	signals    *service.SignalService
	containers *service.ContainerService
	resolver   *auth.Resolver
	logger     *zap.Logger
}

// New builds the fiber application and registers every route
func New(
	cfg Config,
	signals *service.SignalService,
	containers *service.ContainerService,
	resolver *auth.Resolver,
	logger *zap.Logger,
) *Server {
	if cfg.Limits == (nearby.Limits{}) {
		cfg.Limits = nearby.DefaultLimits
	}

	s := &Server{
		cfg:        cfg,
		signals:    signals,
		containers: containers,
		resolver:   resolver,
		logger:     logger,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.logRequests)
	s.app.Use(s.resolveActor)

	s.app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	s.register()
	return s
}

func (s *Server) register() {
	api := s.app.Group("/api")

	api.Post("/signals", s.createSignal)
	api.Get("/signals/:id", s.getSignal)
	api.Patch("/signals/:id", s.updateSignal)

	// nearby must be registered before the :publicNumber route
	api.Get("/waste-containers/nearby", s.nearbyContainers)
	api.Get("/waste-containers/with-signals", s.containersWithSignals)
	api.Get("/waste-containers/:publicNumber", s.getContainer)
	api.Post("/waste-containers/:publicNumber/clean", s.cleanContainer)
}

// App exposes the underlying fiber application
func (s *Server) App() *fiber.App { return s.app }

// Start begins serving in the background
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := s.app.Listen(addr); err != nil {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
