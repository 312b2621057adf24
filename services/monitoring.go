package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	MONITORING_SVC          = "monitoring_svc"
	SERVICE_NAME            = "aperture_backend"
	DEFAULT_PROMETHEUS_PORT = 2112
)

// HTTP metrics
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Generation pipeline metrics
var (
	generationsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generations_started_total",
			Help: "Total generation jobs created",
		},
	)

	generationsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_completed_total",
			Help: "Total generation jobs reaching a terminal state",
		},
		[]string{"status"},
	)

	generationPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_polls_total",
			Help: "Total provider status polls issued",
		},
	)

	creditsChargedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_charged_total",
			Help: "Total credits charged for generations",
		},
	)

	generationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "generations_in_flight",
			Help: "Generation jobs currently being polled",
		},
	)
)

type MonitoringService struct {
	appContext.DefaultService

	port     int
	register *prometheus.Registry

	sqlSvc   *PostgresService
	redisSvc *RedisService
	minioSvc *MinIOService

	server *fiber.App
}

func (svc *MonitoringService) Id() string {
	return MONITORING_SVC
}

func (svc *MonitoringService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.minioSvc = svc.Service(MINIO_SVC).(*MinIOService)

	portStr := os.Getenv("PROMETHEUS_PORT")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = DEFAULT_PROMETHEUS_PORT
	}
	svc.port = port

	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		generationsStartedTotal,
		generationsCompletedTotal,
		generationPollsTotal,
		creditsChargedTotal,
		generationsInFlight,
	)

	svc.register = reg

	config := fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
		},
	}

	svc.server = fiber.New(config)
	svc.server.Use(recover.New())

	svc.server.Get("/metrics", svc.metricsHandler)
	svc.server.Get("/health", svc.healthHandler)

	// The main HTTP service owns the blocking listen; metrics serve alongside.
	go func() {
		if err := svc.server.Listen(fmt.Sprintf(":%v", svc.port)); err != nil {
			log.Error().Err(err).Msg("Prometheus metrics server stopped")
		}
	}()

	log.Info().Int("port", svc.port).Msg("Prometheus metrics server started")
	return nil
}

func (svc *MonitoringService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

func (svc *MonitoringService) metricsHandler(c *fiber.Ctx) error {
	handler := promhttp.HandlerFor(svc.register, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(handler)(c)
}

func (svc *MonitoringService) healthHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	if sqlDB, err := svc.sqlSvc.Db().DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unreachable"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if _, err := svc.redisSvc.GetClient().Ping(ctx).Result(); err != nil {
		checks["redis"] = "unreachable"
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if err := svc.minioSvc.Healthy(ctx); err != nil {
		checks["storage"] = "unreachable"
		healthy = false
	} else {
		checks["storage"] = "ok"
	}

	if counts, err := svc.sqlSvc.CountGenerationsByStatus(); err == nil {
		checks["generations"] = counts
	}

	status := "healthy"
	code := fiber.StatusOK
	if !healthy {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"service":   SERVICE_NAME,
		"checks":    checks,
		"timestamp": time.Now().Unix(),
	})
}

// RecordGenerationStarted and friends are the pipeline's metric hooks.
func RecordGenerationStarted(cost float64) {
	generationsStartedTotal.Inc()
	creditsChargedTotal.Add(cost)
	generationsInFlight.Inc()
}

func RecordGenerationCompleted(status string) {
	generationsCompletedTotal.WithLabelValues(status).Inc()
	generationsInFlight.Dec()
}

func RecordProviderPoll() {
	generationPollsTotal.Inc()
}

// MonitoringMiddleware records request counts and latency on the main app.
func MonitoringMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		method := c.Method()

		err := c.Next()

		endpoint := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(endpoint, method, status).Observe(time.Since(start).Seconds())

		return err
	}
}
