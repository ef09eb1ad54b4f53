package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transit-telemetry/pkg/cachedresults"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

type AlertsResponse struct {
	Count     int
	Alerts    []*ctdf.Alert
	Timestamp time.Time
}

func AlertsRouter(router fiber.Router, backend *Backend) {
	router.Get("/", backend.listAlerts)
}

func (b *Backend) listAlerts(c *fiber.Ctx) error {
	routeID := c.Query("route_id")

	alerts, err := cachedresults.Fetch(c.UserContext(), b.Cache, "alerts:"+routeID, func(ctx context.Context) ([]*ctdf.Alert, error) {
		return b.Detector.GetAllAlerts(ctx, routeID)
	})
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(AlertsResponse{
		Count:     len(alerts),
		Alerts:    alerts,
		Timestamp: b.now(),
	})
}
