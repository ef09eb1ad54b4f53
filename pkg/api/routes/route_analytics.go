package routes

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/export"
)

type RouteDelayHistory struct {
	RouteID   string
	HoursBack int
	Delays    []*ctdf.RouteDelay
}

func RoutesRouter(router fiber.Router, backend *Backend) {
	router.Get("/:route_id/delays", backend.getRouteDelays)
	router.Get("/:route_id/metrics", backend.getRouteMetrics)
}

// getRouteDelays recalculates the route when there is no stored history. A
// failed recalculation is logged and the empty history served.
func (b *Backend) getRouteDelays(c *fiber.Ctx) error {
	routeID := c.Params("route_id")
	ctx := c.UserContext()

	hours, err := getHoursQuery(c, b.Config.Analytics.DelayHoursBack)
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, err)
	}

	format := c.Query("format", export.FormatJSON)
	if format != export.FormatJSON && format != export.FormatCSV {
		return sendError(c, fiber.StatusBadRequest, export.ErrUnknownFormat)
	}

	delays, err := b.Analyzer.GetDelayHistory(ctx, routeID, hours)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	if len(delays) == 0 {
		if err := b.Analyzer.CalculateRouteDelays(ctx, routeID, hours); err != nil {
			log.Error().Err(err).Str("route", routeID).Msg("Error calculating delays")
		} else if delays, err = b.Analyzer.GetDelayHistory(ctx, routeID, hours); err != nil {
			return sendError(c, fiber.StatusInternalServerError, err)
		}
	}

	if delays == nil {
		delays = []*ctdf.RouteDelay{}
	}

	if format == export.FormatCSV {
		var body bytes.Buffer
		if err := export.WriteRouteDelays(&body, format, delays); err != nil {
			return sendError(c, fiber.StatusInternalServerError, err)
		}

		c.Set(fiber.HeaderContentType, export.ContentType(format))
		return c.Send(body.Bytes())
	}

	return c.JSON(RouteDelayHistory{
		RouteID:   routeID,
		HoursBack: hours,
		Delays:    delays,
	})
}

func (b *Backend) getRouteMetrics(c *fiber.Ctx) error {
	routeID := c.Params("route_id")

	routeMetrics, err := b.Analyzer.CalculateRouteMetrics(c.UserContext(), routeID)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(routeMetrics)
}
