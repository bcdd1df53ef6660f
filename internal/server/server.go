package server

import (
	"backend-localpulse/internal/auth"
	"backend-localpulse/internal/classify"
	"backend-localpulse/internal/config"
	"backend-localpulse/internal/feed"
	"backend-localpulse/internal/metrics"
	"backend-localpulse/internal/notification"
	"backend-localpulse/internal/post"
	"backend-localpulse/internal/stream"
	"backend-localpulse/internal/user"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Stream  *stream.Hub
	Metrics *metrics.Collector
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	registry := prometheus.NewRegistry()

	s := &Server{
		App:     app,
		Cfg:     cfg,
		DB:      db,
		Redis:   redisClient,
		Stream:  stream.NewHub(redisClient),
		Metrics: metrics.NewCollector(registry),
	}

	registerRoutes(s, registry)
	return s
}

func registerRoutes(s *Server, registry *prometheus.Registry) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	categorizer := classify.NewHTTPCategorizer(s.Cfg.ClassifierURL, s.Cfg.ClassifierKey)
	dispatcher := notification.NewExpoDispatcher(s.Cfg.PushURL, s.Cfg.PushRate)

	postSvc := post.NewService(s.DB, categorizer)
	notifySvc := notification.NewService(s.DB, s.Stream, dispatcher, s.Metrics)

	post.RegisterRoutes(s.App.Group("/posts"), postSvc, notifySvc, s.Metrics, jwtMiddleware)
	feed.RegisterRoutes(s.App.Group("/feed"), postSvc, s.Metrics)
	user.RegisterRoutes(s.App.Group("/users"), user.NewService(s.DB), jwtMiddleware)
	notification.RegisterRoutes(s.App.Group("/notifications"), notifySvc, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
