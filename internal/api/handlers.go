package api

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"imagery-engine/internal/engine"
)

var validate = validator.New()

// analyzeBody is the POST /api/v1/analyze payload. Either prompt or
// location must be present; everything else is optional.
type analyzeBody struct {
	Prompt       string   `json:"prompt"`
	Location     string   `json:"location"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	AnalysisType string   `json:"analysis_type"`
	Satellite    string   `json:"satellite"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Year         int      `json:"year" validate:"omitempty,gte=1984,lte=2100"`
}

func (b analyzeBody) toRequest() engine.AnalyzeRequest {
	return engine.AnalyzeRequest{
		Prompt:       b.Prompt,
		Location:     b.Location,
		Latitude:     b.Latitude,
		Longitude:    b.Longitude,
		AnalysisType: b.AnalysisType,
		Satellite:    b.Satellite,
		StartDate:    b.StartDate,
		EndDate:      b.EndDate,
		Year:         b.Year,
	}
}

func (b analyzeBody) validateRequest() error {
	if b.Prompt == "" && b.Location == "" && (b.Latitude == nil || b.Longitude == nil) {
		return fiber.NewError(fiber.StatusBadRequest, "prompt, location, or coordinates required")
	}
	if (b.Latitude == nil) != (b.Longitude == nil) {
		return fiber.NewError(fiber.StatusBadRequest, "latitude and longitude must be provided together")
	}
	if err := validate.Struct(b); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

type timeSeriesBody struct {
	analyzeBody
	Interval string `json:"interval"`
}

type comparePeriodBody struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Year      int    `json:"year" validate:"omitempty,gte=1984,lte=2100"`
}

type compareBody struct {
	Location     string            `json:"location"`
	Latitude     *float64          `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64          `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	AnalysisType string            `json:"analysis_type"`
	Satellite    string            `json:"satellite"`
	Before       comparePeriodBody `json:"before"`
	After        comparePeriodBody `json:"after"`
}

func (b compareBody) validateRequest() error {
	if b.Location == "" && (b.Latitude == nil || b.Longitude == nil) {
		return fiber.NewError(fiber.StatusBadRequest, "location or coordinates required")
	}
	if emptyPeriod(b.Before) || emptyPeriod(b.After) {
		return fiber.NewError(fiber.StatusBadRequest, "both comparison periods require dates")
	}
	if err := validate.Struct(b); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func emptyPeriod(p comparePeriodBody) bool {
	return p.StartDate == "" && p.EndDate == "" && p.Year == 0
}

func (s *Server) registerRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Post("/analyze", s.handleAnalyze)
	v1.Post("/timeseries", s.handleTimeSeries)
	v1.Post("/comparison", s.handleComparison)
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var body analyzeBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := body.validateRequest(); err != nil {
		return err
	}

	timer := s.timer("/api/v1/analyze")
	result, err := s.service.Analyze(c.Context(), body.toRequest())
	s.observe(timer)
	if err != nil {
		return s.respondError(c, "/api/v1/analyze", err)
	}
	s.count("/api/v1/analyze", c.Method(), strconv.Itoa(fiber.StatusOK))
	return c.JSON(result)
}

func (s *Server) handleTimeSeries(c *fiber.Ctx) error {
	var body timeSeriesBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := body.validateRequest(); err != nil {
		return err
	}
	if body.StartDate == "" && body.Year == 0 && body.Prompt == "" {
		return fiber.NewError(fiber.StatusBadRequest, "time series requires a date range or year")
	}

	timer := s.timer("/api/v1/timeseries")
	result, err := s.service.TimeSeries(c.Context(), engine.TimeSeriesRequest{
		AnalyzeRequest: body.toRequest(),
		Interval:       body.Interval,
	})
	s.observe(timer)
	if err != nil {
		return s.respondError(c, "/api/v1/timeseries", err)
	}
	s.count("/api/v1/timeseries", c.Method(), strconv.Itoa(fiber.StatusOK))
	return c.JSON(result)
}

func (s *Server) handleComparison(c *fiber.Ctx) error {
	var body compareBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := body.validateRequest(); err != nil {
		return err
	}

	timer := s.timer("/api/v1/comparison")
	result, err := s.service.Compare(c.Context(), engine.CompareRequest{
		Location:     body.Location,
		Latitude:     body.Latitude,
		Longitude:    body.Longitude,
		AnalysisType: body.AnalysisType,
		Satellite:    body.Satellite,
		Before: engine.ComparePeriod{
			StartDate: body.Before.StartDate,
			EndDate:   body.Before.EndDate,
			Year:      body.Before.Year,
		},
		After: engine.ComparePeriod{
			StartDate: body.After.StartDate,
			EndDate:   body.After.EndDate,
			Year:      body.After.Year,
		},
	})
	s.observe(timer)
	if err != nil {
		return s.respondError(c, "/api/v1/comparison", err)
	}
	s.count("/api/v1/comparison", c.Method(), strconv.Itoa(fiber.StatusOK))
	return c.JSON(result)
}

type durationObserver interface {
	ObserveDuration() time.Duration
}

func (s *Server) timer(endpoint string) durationObserver {
	if s.metrics == nil {
		return noopTimer{}
	}
	return s.metrics.NewTimer(s.metrics.APIRequestDuration.WithLabelValues(endpoint))
}

func (s *Server) observe(t durationObserver) {
	t.ObserveDuration()
}

func (s *Server) count(endpoint, method, status string) {
	if s.metrics != nil {
		s.metrics.RecordAPIRequest(endpoint, method, status)
	}
}

type noopTimer struct{}

func (noopTimer) ObserveDuration() time.Duration { return 0 }
