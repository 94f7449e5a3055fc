package history

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, store Store) {
	r.Get("/", func(c *fiber.Ctx) error {
		records, err := store.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(records)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		rec, err := store.Get(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(err)
		}
		return c.JSON(rec)
	})

	r.Patch("/:id", func(c *fiber.Ctx) error {
		var body Enrichment
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rec, err := store.Enrich(c.Context(), c.Params("id"), body)
		if err != nil {
			return storeError(err)
		}
		return c.JSON(rec)
	})
}

func storeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptyEnrichment):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateRecord):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
