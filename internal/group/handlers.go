package group

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, coord *Coordinator, invites *Invites) {
	r.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(coord.State())
	})

	r.Get("/requests/history", func(c *fiber.Ctx) error {
		return c.JSON(coord.History())
	})

	r.Post("/invites", func(c *fiber.Ctx) error {
		if !invites.Enabled() {
			return fiber.NewError(fiber.StatusNotImplemented, "invites are not configured")
		}
		var body struct {
			PeerID PeerID `json:"peerId"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		token, err := invites.Issue(body.PeerID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token})
	})

	r.Post("/playback", func(c *fiber.Ctx) error {
		var body struct {
			Action          string  `json:"action"`
			TrackID         string  `json:"trackId"`
			PositionSeconds float64 `json:"positionSeconds"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var err error
		switch body.Action {
		case "play":
			err = coord.Play(body.TrackID)
		case "pause":
			err = coord.Pause()
		case "skip":
			if body.TrackID == "" {
				return fiber.NewError(fiber.StatusBadRequest, "skip needs trackId")
			}
			err = coord.Skip(body.TrackID)
		case "seek":
			err = coord.Seek(body.PositionSeconds)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "unknown playback action")
		}
		if err != nil {
			return groupError(err)
		}
		return c.JSON(coord.State())
	})

	r.Post("/mute", func(c *fiber.Ctx) error {
		var body Mute
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := coord.SetMute(body.Music, body.Voice); err != nil {
			return groupError(err)
		}
		return c.JSON(coord.State())
	})

	r.Post("/requests", func(c *fiber.Ctx) error {
		var body SongRequestSubmit
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req, err := coord.SubmitSongRequest(body.Title, body.Artist)
		if err != nil {
			return groupError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(req)
	})

	r.Post("/requests/:id/:decision", func(c *fiber.Ctx) error {
		id := c.Params("id")
		var (
			req SongRequest
			err error
		)
		switch c.Params("decision") {
		case "approve":
			req, err = coord.Approve(id)
		case "reject":
			req, err = coord.Reject(id)
		case "played":
			req, err = coord.MarkPlayed(id)
		default:
			return fiber.NewError(fiber.StatusNotFound, "unknown decision")
		}
		if err != nil {
			return groupError(err)
		}
		return c.JSON(req)
	})
}

func groupError(err error) error {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrRequestDecided):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidSeek), errors.Is(err, ErrEmptyTitle):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrClosed):
		return fiber.NewError(fiber.StatusGone, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
