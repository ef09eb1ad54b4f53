package routes

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func getHoursQuery(c *fiber.Ctx, defaultHours int) (int, error) {
	hoursQuery := c.Query("hours")
	if hoursQuery == "" {
		return defaultHours, nil
	}

	hours, err := strconv.Atoi(hoursQuery)
	if err != nil || hours < 1 {
		return 0, errors.New("Parameter hours should be a positive integer")
	}

	return hours, nil
}

func sendError(c *fiber.Ctx, status int, err error) error {
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}

	c.SendStatus(status)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}
