package user

import (
	"errors"

	"backend-localpulse/internal/geo"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Profile
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.ID == "" || req.Email == "" {
			return fiber.NewError(fiber.StatusBadRequest, "id and email required")
		}
		profile, err := svc.CreateProfile(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(profile)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		profile, err := svc.GetProfile(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(profile)
	})

	r.Patch("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var patch Profile
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		profile, err := svc.UpdateProfile(c.Context(), c.Params("id"), patch)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(profile)
	})

	r.Put("/:id/preferences", authMiddleware, func(c *fiber.Ctx) error {
		var patch PreferencesPatch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		prefs, err := svc.UpdatePreferences(c.Context(), c.Params("id"), patch)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(prefs)
	})

	r.Put("/:id/push-token", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			PushToken string `json:"push_token"`
		}
		if err := c.BodyParser(&body); err != nil || body.PushToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "push_token required")
		}
		if err := svc.UpdatePushToken(c.Context(), c.Params("id"), body.PushToken); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Put("/:id/location", authMiddleware, func(c *fiber.Ctx) error {
		var loc geo.Coordinate
		if err := c.BodyParser(&loc); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !loc.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "latitude/longitude out of range")
		}
		if err := svc.UpdateLastLocation(c.Context(), c.Params("id"), loc); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
