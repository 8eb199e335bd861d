// Package api exposes the analysis engine over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"imagery-engine/internal/ee"
	"imagery-engine/internal/engine"
	"imagery-engine/internal/location"
	"imagery-engine/internal/selector"
	"imagery-engine/pkg/metrics"
)

// Service is the engine surface the API consumes.
type Service interface {
	Analyze(ctx context.Context, req engine.AnalyzeRequest) (*engine.AnalysisResult, error)
	TimeSeries(ctx context.Context, req engine.TimeSeriesRequest) (*engine.TimeSeriesResult, error)
	Compare(ctx context.Context, req engine.CompareRequest) (*engine.CompareResult, error)
}

// Server holds the HTTP layer's collaborators.
type Server struct {
	service Service
	metrics *metrics.Collector
}

// NewApp builds the Fiber application with routes and middleware wired.
// metrics may be nil.
func NewApp(service Service, collector *metrics.Collector) *fiber.App {
	s := &Server{service: service, metrics: collector}

	app := fiber.New(fiber.Config{
		AppName:               "imagery-engine",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		// Analyses and series can hold the connection for a while.
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "imagery-engine",
		})
	})

	s.registerRoutes(app)
	return app
}

// respondError maps domain errors onto HTTP statuses and stable error codes.
func (s *Server) respondError(c *fiber.Ctx, endpoint string, err error) error {
	var (
		status = fiber.StatusInternalServerError
		code   = "internal_error"
	)
	var noImg *selector.NoImageryError
	switch {
	case errors.Is(err, location.ErrLocationNotFound):
		status, code = fiber.StatusNotFound, "location_not_found"
	case errors.As(err, &noImg):
		status, code = fiber.StatusNotFound, "no_imagery"
	case errors.Is(err, ee.ErrUnavailable):
		status, code = fiber.StatusBadGateway, "backend_error"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = fiber.StatusGatewayTimeout, "timeout"
	}
	if s.metrics != nil {
		s.metrics.RecordAPIError(code, endpoint)
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"code":    code,
		"message": err.Error(),
	})
}
