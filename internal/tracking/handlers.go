package tracking

import (
	"errors"

	"backend-rxdispatch/internal/stream"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:kind/:id/points", authMiddleware, func(c *fiber.Ctx) error {
		trackingID, err := stream.TrackingID(c.Params("kind"), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		limit := c.QueryInt("limit", 0)
		if limit < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
		}
		points, err := svc.Points(c.Context(), trackingID, limit)
		if err != nil {
			return storeError(err)
		}
		return c.JSON(points)
	})

	r.Get("/:kind/:id/summary", authMiddleware, func(c *fiber.Ctx) error {
		trackingID, err := stream.TrackingID(c.Params("kind"), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		summary, err := svc.Summary(c.Context(), trackingID)
		if err != nil {
			return storeError(err)
		}
		return c.JSON(summary)
	})
}

func storeError(err error) error {
	if errors.Is(err, ErrNoDatabase) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
