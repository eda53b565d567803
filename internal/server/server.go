package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/ussd_gateway/internal/config"
	"github.com/congo-pay/ussd_gateway/internal/routes"
	"github.com/congo-pay/ussd_gateway/internal/session"
)

// Server wraps the Fiber application and its background session reaper.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	reaper *session.Reaper
	logger *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
	})

	reaper, err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, reaper: reaper, logger: logger}, nil
}

// Run serves HTTP and sweeps idle sessions until ctx is cancelled, then
// shuts the listener down within the configured grace period.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "address", s.cfg.Address())
		return s.app.Listen(s.cfg.Address())
	})
	g.Go(func() error {
		return s.reaper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownPeriod)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}

// App exposes the Fiber application for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}
