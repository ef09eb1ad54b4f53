package api

import (
	"strings"

	"github.com/adjust/rmq/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/travigo/transit-telemetry/pkg/api/routes"
	"github.com/travigo/transit-telemetry/pkg/consumer"
	"github.com/travigo/transit-telemetry/pkg/metrics"
)

// NewApp wires the read API. m and queue may be nil, their endpoints are
// then not registered.
func NewApp(backend *routes.Backend, m *metrics.Metrics, queue rmq.Connection) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(recover.New())
	webApp.Use(NewLogger())
	webApp.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(backend.Config.API.CORSOrigins),
	}))

	webApp.Get("/version", routes.APIVersion)

	routes.HealthRouter(webApp.Group("/health"), backend)
	routes.VehiclesRouter(webApp.Group("/vehicles"), backend)
	routes.RoutesRouter(webApp.Group("/routes"), backend)
	routes.AnalyticsRouter(webApp.Group("/analytics"), backend)
	routes.AlertsRouter(webApp.Group("/alerts"), backend)

	if m != nil {
		webApp.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	if queue != nil {
		webApp.Get("/queues/stats", adaptor.HTTPHandler(consumer.NewStatsHandler(queue)))
	}

	return webApp
}

func corsOrigins(origins string) string {
	if origins == "" {
		return "*"
	}

	return strings.Join(strings.Split(origins, ","), ", ")
}
