package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the service's Prometheus metrics.
type Collector struct {
	postsCreated    prometheus.Counter
	feedRequests    prometheus.Counter
	feedFetchFails  prometheus.Counter
	usersMatched    prometheus.Counter
	notificationsOK prometheus.Counter
	pushFailures    prometheus.Counter
}

// NewCollector registers the metrics on reg and returns the collector.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localpulse_posts_created_total",
			Help: "Posts created.",
		}),
		feedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localpulse_feed_requests_total",
			Help: "Public feed requests served.",
		}),
		feedFetchFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localpulse_feed_fetch_failures_total",
			Help: "Candidate fetches that degraded to an empty feed.",
		}),
		usersMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localpulse_notification_matches_total",
			Help: "Users matched by the notification pass.",
		}),
		notificationsOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localpulse_notifications_created_total",
			Help: "In-app notifications created successfully.",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localpulse_push_failures_total",
			Help: "Push dispatches that failed.",
		}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.feedRequests,
		c.feedFetchFails,
		c.usersMatched,
		c.notificationsOK,
		c.pushFailures,
	)
	return c
}

func (c *Collector) RecordPostCreated() { c.postsCreated.Inc() }

func (c *Collector) RecordFeedRequest() { c.feedRequests.Inc() }

func (c *Collector) RecordFeedFetchFailure() { c.feedFetchFails.Inc() }

func (c *Collector) RecordMatches(n int) { c.usersMatched.Add(float64(n)) }

func (c *Collector) RecordNotificationSent() { c.notificationsOK.Inc() }

func (c *Collector) RecordPushFailure() { c.pushFailures.Inc() }

// Handler returns the scrape endpoint for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
