package ride

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, tracker *Tracker) {
	r.Post("/start", func(c *fiber.Ctx) error {
		var body struct {
			GroupMode bool `json:"groupMode"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		return c.Status(fiber.StatusCreated).JSON(tracker.StartRide(body.GroupMode))
	})

	r.Post("/samples", func(c *fiber.Ctx) error {
		var sample Sample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		accepted := tracker.Ingest(sample)
		return c.JSON(fiber.Map{"accepted": accepted})
	})

	r.Post("/pause", func(c *fiber.Ctx) error {
		if err := tracker.PauseRide(); err != nil {
			return lifecycleError(err)
		}
		return c.JSON(tracker.Snapshot())
	})

	r.Post("/resume", func(c *fiber.Ctx) error {
		if err := tracker.ResumeRide(); err != nil {
			return lifecycleError(err)
		}
		return c.JSON(tracker.Snapshot())
	})

	r.Post("/end", func(c *fiber.Ctx) error {
		rec, err := tracker.EndRide(c.Context())
		if err != nil {
			return lifecycleError(err)
		}
		return c.JSON(rec)
	})

	r.Post("/reset", func(c *fiber.Ctx) error {
		if err := tracker.Reset(); err != nil {
			return lifecycleError(err)
		}
		return c.JSON(tracker.Snapshot())
	})

	r.Get("/current", func(c *fiber.Ctx) error {
		return c.JSON(tracker.Snapshot())
	})
}

func lifecycleError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNoActiveRide), errors.Is(err, ErrDuplicateRecord):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
