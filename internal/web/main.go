// Package web provides the admin API surface of the permissions engine.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/glassview-analytics/glassview/internal/config"
	fiberlogger "github.com/glassview-analytics/glassview/internal/logger/adapter/fiber"
	"github.com/glassview-analytics/glassview/internal/perm/graph"
	"github.com/glassview-analytics/glassview/internal/perm/mutate"
	"github.com/glassview-analytics/glassview/internal/perm/resolve"
	"github.com/glassview-analytics/glassview/internal/perm/store"
	"github.com/glassview-analytics/glassview/internal/web/handler/permissions"
	"github.com/glassview-analytics/glassview/internal/web/middleware/identity"
)

// CheckAlivePath is the liveness endpoint used by load balancers.
const CheckAlivePath = "/checkalive"

// Service represents the web service.
type Service struct {
	App   *fiber.App
	cfg   *config.Config
	alive atomic.Bool
	db    *gorm.DB
}

// New creates the web service and registers all routes.
// Authentication is handled by an upstream gateway; these handlers trust the
// forwarded caller identity.
func New(cfg *config.Config, db *gorm.DB) (*Service, error) {
	rowStore, err := store.NewGormStore(db)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.Title,
		DisableStartupMessage: !cfg.DevMode,
	})

	s := &Service{App: app, cfg: cfg, db: db}
	s.alive.Store(true)

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
	}))

	app.Use(identity.New())

	app.Get(CheckAlivePath, s.checkAlive)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	permissions.RegisterRoutes(app, permissions.NewHandler(
		resolve.New(rowStore, nil),
		mutate.New(rowStore),
		graph.NewBuilder(rowStore),
		cfg.Permissions,
	))

	return s, nil
}

func (s *Service) checkAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendStatus(fiber.StatusOK)
}

// Start starts the web service on the configured port.
func (s *Service) Start() error {
	var doneFiber = make(chan bool)

	go func() {
		addr := fmt.Sprintf(":%d", s.cfg.Webserver.Port)

		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: fail the liveness check first so
	// the LB removes this pod from active targets.
	if s.cfg.Webserver.ShutDownTime > 0 {
		log.Info().Msgf(
			"graceful shutdown: return 503 for %d seconds to let LB remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
