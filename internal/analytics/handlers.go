package analytics

import (
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
)

const defaultTrendDays = 7

func RegisterRoutes(r fiber.Router, engine *Engine) {
	r.Get("/day/:date", func(c *fiber.Ctx) error {
		date, err := engine.parseDate(dayLayout, c.Params("date"))
		if err != nil {
			return err
		}
		summary, err := engine.Summary(c.Context(), date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if summary == nil {
			return fiber.NewError(fiber.StatusNotFound, "no rides on "+c.Params("date"))
		}
		return c.JSON(summary)
	})

	r.Get("/week/:date", func(c *fiber.Ctx) error {
		date, err := engine.parseDate(dayLayout, c.Params("date"))
		if err != nil {
			return err
		}
		summary, err := engine.WeekSummary(c.Context(), date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Get("/month/:month", func(c *fiber.Ctx) error {
		month, err := engine.parseDate(monthLayout, c.Params("month"))
		if err != nil {
			return err
		}
		summary, err := engine.MonthSummary(c.Context(), month)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Get("/streak", func(c *fiber.Ctx) error {
		asOf := engine.clock.Now()
		if q := c.Query("asOf"); q != "" {
			d, err := engine.parseDate(dayLayout, q)
			if err != nil {
				return err
			}
			asOf = d
		}
		streak, err := engine.Streak(c.Context(), asOf)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(streak)
	})

	r.Get("/trend", func(c *fiber.Ctx) error {
		days := c.QueryInt("days", defaultTrendDays)
		if days <= 0 || days > 366 {
			return fiber.NewError(fiber.StatusBadRequest, "days must be between 1 and 366")
		}
		trend, err := engine.RecentDailyTrend(c.Context(), days)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(slices.Collect(trend))
	})

	r.Get("/weekly", func(c *fiber.Ctx) error {
		weekly, err := engine.WeeklySummary(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(weekly)
	})

	r.Get("/goal/:date", func(c *fiber.Ctx) error {
		date, err := engine.parseDate(dayLayout, c.Params("date"))
		if err != nil {
			return err
		}
		progress, err := engine.GoalProgress(c.Context(), date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(progress)
	})
}

func (e *Engine) parseDate(layout, value string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, value, e.cfg.Location)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid date "+value)
	}
	return t, nil
}
