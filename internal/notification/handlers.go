package notification

import (
	"errors"
	"time"

	"backend-localpulse/internal/geo"

	"github.com/gofiber/fiber/v2"
)

// Handlers act on behalf of the authenticated user only; the user id comes
// from the JWT middleware, never from request input.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := actingUser(c)
		if err != nil {
			return err
		}
		notifications, err := svc.Notifications(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if notifications == nil {
			notifications = []Notification{}
		}
		return c.JSON(notifications)
	})

	r.Get("/unread-count", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := actingUser(c)
		if err != nil {
			return err
		}
		count, err := svc.UnreadCount(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"count": count})
	})

	r.Get("/scheduled", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := actingUser(c)
		if err != nil {
			return err
		}
		notifications, err := svc.Scheduled(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if notifications == nil {
			notifications = []Notification{}
		}
		return c.JSON(notifications)
	})

	r.Post("/schedule", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := actingUser(c)
		if err != nil {
			return err
		}
		var req struct {
			Title        string          `json:"title"`
			Content      string          `json:"content"`
			ScheduledFor time.Time       `json:"scheduled_for"`
			Category     string          `json:"category"`
			Location     *geo.Coordinate `json:"location"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Title == "" || req.ScheduledFor.IsZero() {
			return fiber.NewError(fiber.StatusBadRequest, "title and scheduled_for required")
		}
		n, err := svc.Schedule(c.Context(), userID, req.Title, req.Content, req.ScheduledFor, req.Category, req.Location)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(n)
	})

	r.Post("/read-all", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := actingUser(c)
		if err != nil {
			return err
		}
		if err := svc.MarkAllRead(c.Context(), userID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/read", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := actingUser(c)
		if err != nil {
			return err
		}
		err = svc.MarkRead(c.Context(), c.Params("id"), userID)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "notification not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := actingUser(c)
		if err != nil {
			return err
		}
		err = svc.Delete(c.Context(), c.Params("id"), userID)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "notification not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func actingUser(c *fiber.Ctx) (string, error) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing authenticated user")
	}
	return userID, nil
}
