package feed

import (
	"context"
	"strconv"
	"strings"

	"backend-localpulse/internal/metrics"
	"backend-localpulse/internal/post"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RegisterRoutes mounts the public feed endpoint: fetch candidates (radius
// applied at fetch time), then compose text/category filtering and sort over
// the snapshot. Concurrent reloads of the same candidate query keep only the
// most recently initiated result. A failed fetch degrades to an empty feed.
func RegisterRoutes(r fiber.Router, posts *post.Service, collector *metrics.Collector) {
	loader := newCandidateLoader()

	r.Get("/", func(c *fiber.Ctx) error {
		if collector != nil {
			collector.RecordFeedRequest()
		}

		viewer := post.ViewerFromQuery(c)
		state := FilterState{
			SearchText: c.Query("search"),
			Categories: splitCategories(c.Query("categories")),
			Radius:     post.RadiusFromQuery(c),
			Sort:       ParseSortMode(c.Query("sort")),
		}
		limit, _ := strconv.Atoi(c.Query("limit"))

		key := candidateKey(viewer, state.Radius, limit)
		candidates, err := loader.load(c.Context(), key, func(ctx context.Context) ([]post.Post, error) {
			return posts.PublicPosts(ctx, viewer, state.Radius, limit)
		})
		if err != nil {
			logrus.WithError(err).Warn("feed candidate fetch failed")
			if collector != nil {
				collector.RecordFeedFetchFailure()
			}
			candidates = nil
		}

		result := Compose(candidates, state, viewer)
		if result == nil {
			result = []post.Post{}
		}
		return c.JSON(result)
	})
}

func splitCategories(raw string) []string {
	if raw == "" {
		return nil
	}
	var categories []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			categories = append(categories, part)
		}
	}
	return categories
}
