package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

type Health struct {
	Status   string
	Message  string `json:",omitempty"`
	Database string
	Error    string `json:",omitempty"`

	LastCollection             *time.Time `json:",omitempty"`
	SecondsSinceLastCollection *float64   `json:",omitempty"`

	VehiclesTracked int64
	UptimeSeconds   int64
}

func HealthRouter(router fiber.Router, backend *Backend) {
	router.Get("/", func(c *fiber.Ctx) error {
		health, healthy := backend.checkHealth(c)

		if !healthy {
			c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.JSON(health)
	})
}

// checkHealth never fails, storage errors present as an unhealthy status
func (b *Backend) checkHealth(c *fiber.Ctx) (*Health, bool) {
	ctx := c.UserContext()
	now := b.now()

	unreachable := func(err error) (*Health, bool) {
		log.Error().Err(err).Msg("Health check failed")

		return &Health{
			Status:   HealthStatusUnhealthy,
			Database: "disconnected",
			Error:    err.Error(),
		}, false
	}

	if err := b.Store.Ping(ctx); err != nil {
		return unreachable(err)
	}

	lastCollection, err := b.Store.LatestVehicleUpdate(ctx)
	if err != nil {
		return unreachable(err)
	}

	vehicles, err := b.Store.CountVehicles(ctx)
	if err != nil {
		return unreachable(err)
	}

	health := &Health{
		Status:          HealthStatusHealthy,
		Database:        "connected",
		VehiclesTracked: vehicles,
	}

	if lastCollection == nil {
		return health, true
	}

	firstEvent, err := b.Store.EarliestEventTimestamp(ctx)
	if err != nil {
		return unreachable(err)
	}
	if firstEvent != nil {
		health.UptimeSeconds = int64(now.Sub(*firstEvent).Seconds())
	}

	sinceLastCollection := now.Sub(*lastCollection)
	seconds := sinceLastCollection.Seconds()

	health.LastCollection = lastCollection
	health.SecondsSinceLastCollection = &seconds

	if sinceLastCollection >= b.Config.Analytics.HealthStaleAfter {
		health.Status = HealthStatusUnhealthy
		health.Message = "Last collection was more than " + b.Config.Analytics.HealthStaleAfter.String() + " ago"

		return health, false
	}

	return health, true
}
