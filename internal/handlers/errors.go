package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tour-service/internal/services"
)

// errorStatus maps a service error to its HTTP status.
func errorStatus(err error) int {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidReference):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrMediaUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// respondError writes the error body for a failed service call.
func respondError(c *fiber.Ctx, err error, message string) error {
	status := errorStatus(err)
	body := fiber.Map{
		"error":   true,
		"message": message,
		"details": err.Error(),
	}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["validation"] = verr
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg(message)
	} else {
		log.Debug().Err(err).Str("path", c.Path()).Int("status", status).Msg(message)
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	log.Debug().Err(err).Str("path", c.Path()).Msg(message)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   true,
		"message": message,
		"details": err.Error(),
	})
}

// pathIDs parses the named path parameters as UUIDs, in order.
func pathIDs(c *fiber.Ctx, names ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		raw := c.Params(name)
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %q", name, raw)
		}
		ids[i] = id
	}
	return ids, nil
}
