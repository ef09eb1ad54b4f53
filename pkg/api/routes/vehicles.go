package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

func VehiclesRouter(router fiber.Router, backend *Backend) {
	router.Get("/", backend.listVehicles)
}

// listVehicles returns vehicles updated within the vehicle window, newest first
func (b *Backend) listVehicles(c *fiber.Ctx) error {
	vehicles, err := b.Store.FindVehicles(c.UserContext(), &ctdf.QueryVehicles{
		RouteID:      c.Query("route_id"),
		UpdatedSince: b.now().Add(-b.Config.Analytics.VehicleWindow),
	}, -1)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	groups := []string{"basic"}
	if c.QueryBool("detailed") {
		groups = append(groups, "detailed")
	}

	vehiclesReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, vehicles)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sheriff could not reduce Vehicles",
		})
	}

	return c.JSON(vehiclesReduced)
}
