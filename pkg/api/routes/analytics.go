package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/transit-telemetry/pkg/analytics"
	"github.com/travigo/transit-telemetry/pkg/api/stats"
	"github.com/travigo/transit-telemetry/pkg/cachedresults"
)

type HeadwayAnalysis struct {
	RouteID  string `json:",omitempty"`
	Analysis map[string]*analytics.HeadwayStats
}

func AnalyticsRouter(router fiber.Router, backend *Backend) {
	router.Get("/headway", backend.getHeadwayAnalysis)
	router.Get("/system", backend.getSystemStats)
}

func (b *Backend) getHeadwayAnalysis(c *fiber.Ctx) error {
	routeID := c.Query("route_id")

	analysis, err := cachedresults.Fetch(c.UserContext(), b.Cache, "headway:"+routeID, func(ctx context.Context) (map[string]*analytics.HeadwayStats, error) {
		return b.Analyzer.AnalyzeHeadways(ctx, routeID)
	})
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(HeadwayAnalysis{
		RouteID:  routeID,
		Analysis: analysis,
	})
}

func (b *Backend) getSystemStats(c *fiber.Ctx) error {
	recordsStats, err := stats.Calculate(c.UserContext(), b.Store, b.Config.Collector.Interval, b.now())
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(recordsStats)
}
