package post

import (
	"context"
	"errors"
	"strconv"

	"backend-localpulse/internal/geo"
	"backend-localpulse/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Notifier fans a freshly created post out to subscribed users. Implemented by
// the notification service; called fire-and-forget after creation.
type Notifier interface {
	NotifyUsersAboutPost(ctx context.Context, p Post) (int, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, notifier Notifier, collector *metrics.Collector, authMiddleware fiber.Handler) {
	r.Get("/nearby", func(c *fiber.Ctx) error {
		// An absent or malformed center degrades to the broad fetch rather
		// than anchoring a bounded radius at coordinate (0,0).
		center := ViewerFromQuery(c)
		radius := RadiusFromQuery(c)

		posts, err := svc.PublicPosts(c.Context(), center, radius, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if posts == nil {
			posts = []Post{}
		}
		return c.JSON(posts)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Post
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Title == "" || req.Content == "" || req.AuthorID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "title, content and author_id required")
		}

		created, err := svc.CreatePost(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if collector != nil {
			collector.RecordPostCreated()
		}

		if notifier != nil && created.IsPublic {
			go func(p Post) {
				if _, err := notifier.NotifyUsersAboutPost(context.Background(), p); err != nil {
					logrus.WithError(err).WithField("post_id", p.ID).Warn("notification pass failed")
				}
			}(created)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		p, err := svc.GetPost(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})

	r.Patch("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var patch Post
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		authorID, _ := c.Locals("user_id").(string)

		updated, err := svc.UpdatePost(c.Context(), c.Params("id"), authorID, patch)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		if errors.Is(err, ErrNotAuthor) {
			return fiber.NewError(fiber.StatusForbidden, "not the post author")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(updated)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		authorID, _ := c.Locals("user_id").(string)
		err := svc.DeletePost(c.Context(), c.Params("id"), authorID)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/like", authMiddleware, func(c *fiber.Ctx) error {
		likes, err := svc.Like(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"likes": likes})
	})

	r.Post("/:id/verify", authMiddleware, func(c *fiber.Ctx) error {
		verified, err := svc.Verify(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"verified": verified})
	})
}

// RadiusFromQuery reads the radius_km parameter; absent or 0 means no
// distance constraint.
func RadiusFromQuery(c *fiber.Ctx) geo.Radius {
	km, err := strconv.ParseFloat(c.Query("radius_km"), 64)
	if err != nil {
		return geo.Unbounded()
	}
	return geo.Bounded(km)
}

// ViewerFromQuery reads the lat/lng parameters, returning nil when either is
// absent, malformed, or out of range.
func ViewerFromQuery(c *fiber.Ctx) *geo.Coordinate {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		return nil
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	coord := geo.Coordinate{Lat: lat, Lng: lng}
	if !coord.Valid() {
		return nil
	}
	return &coord
}
