package batch

import (
	"errors"

	"backend-rxdispatch/internal/planner"
	"backend-rxdispatch/internal/pricing"
	"backend-rxdispatch/internal/stop"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/batches/plan", authMiddleware, func(c *fiber.Ctx) error {
		var req PlanRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		createdBy, _ := c.Locals("user_id").(string)
		b, err := svc.Plan(c.Context(), req, createdBy)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	})

	r.Get("/batches/:id", authMiddleware, func(c *fiber.Ctx) error {
		b, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(b)
	})

	r.Post("/pricing/quote", authMiddleware, func(c *fiber.Ctx) error {
		var req PlanRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		q, err := svc.Quote(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(q)
	})

	r.Get("/pricing/config", authMiddleware, func(c *fiber.Ctx) error {
		cfg, err := svc.PricingConfig(c.Context())
		if err != nil {
			return httpError(err)
		}
		if cfg == nil {
			return fiber.NewError(fiber.StatusNotFound, "pricing config not set")
		}
		return c.JSON(cfg)
	})

	r.Put("/pricing/config", authMiddleware, func(c *fiber.Ctx) error {
		var cfg pricing.Config
		if err := c.BodyParser(&cfg); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.SavePricingConfig(c.Context(), cfg); err != nil {
			return httpError(err)
		}
		return c.JSON(cfg)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, planner.ErrEmptyWaypointSet), errors.Is(err, planner.ErrInvalidWaypoint), errors.Is(err, stop.ErrNotFound):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, pricing.ErrInvalidConfig):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrNoRouteFound):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, ErrNoDatabase), errors.Is(err, stop.ErrNoDatabase):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
