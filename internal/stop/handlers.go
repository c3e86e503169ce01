package stop

import (
	"errors"

	"backend-rxdispatch/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Stop
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.CreatedBy, _ = c.Locals("user_id").(string)
		st, err := svc.Create(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(st)
	})

	r.Get("/nearby", authMiddleware, func(c *fiber.Ctx) error {
		p := geo.Point{Lat: c.QueryFloat("lat", 0), Lng: c.QueryFloat("lng", 0)}
		if c.Query("lat") == "" || c.Query("lng") == "" || !p.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "valid lat and lng required")
		}
		radius := c.QueryFloat("radius_km", 5)
		if radius <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "radius_km must be positive")
		}
		stops, err := svc.Nearby(c.Context(), p, radius)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(stops)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		st, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(st)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req Stop
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		st, err := svc.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(st)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidStop):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoDatabase):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
