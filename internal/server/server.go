package server

import (
	"backend-rxdispatch/internal/auth"
	"backend-rxdispatch/internal/batch"
	"backend-rxdispatch/internal/config"
	"backend-rxdispatch/internal/db"
	"backend-rxdispatch/internal/directions"
	"backend-rxdispatch/internal/eta"
	"backend-rxdispatch/internal/logging"
	"backend-rxdispatch/internal/planner"
	"backend-rxdispatch/internal/pricing"
	"backend-rxdispatch/internal/stop"
	"backend-rxdispatch/internal/stream"
	"backend-rxdispatch/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	App        *fiber.App
	Cfg        config.Config
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Stream     *stream.Hub
	Directions *directions.Client
	Planner    *planner.Planner
	Log        *zap.Logger
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) *Server {
	log = logging.OrNop(log)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	if cfg.DirectionsToken == "" {
		log.Warn("DIRECTIONS_TOKEN is empty, provider calls will likely be rejected")
	}
	dir := directions.NewClient(directions.Options{
		BaseURL: cfg.DirectionsBaseURL,
		Token:   cfg.DirectionsToken,
		Profile: cfg.DirectionsProfile,
		Timeout: cfg.DirectionsTimeout,
		Logger:  log.Named("directions"),
	})

	rates := pricing.DefaultSimpleRates
	if cfg.SimpleBasePrice > 0 || cfg.SimplePricePerKm > 0 {
		rates = pricing.SimpleRates{BasePrice: cfg.SimpleBasePrice, PricePerKm: cfg.SimplePricePerKm}
	}

	s := &Server{
		App:        app,
		Cfg:        cfg,
		DB:         pg,
		Redis:      redisClient,
		Directions: dir,
		Planner:    planner.New(dir, planner.WithSimpleRates(rates), planner.WithLogger(log.Named("planner"))),
		Log:        log,
	}

	s.Stream = stream.NewHub(
		stream.WithCapacity(cfg.RoomCapacity),
		stream.WithSendTimeout(cfg.SendTimeout),
		stream.WithLogger(log.Named("stream")),
		stream.WithPublishers(s.publishers()...),
	)

	registerRoutes(s)
	return s
}

// querier keeps a nil pool from becoming a non-nil interface.
func (s *Server) querier() db.Querier {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

func (s *Server) publishers() []stream.LocationPublisher {
	var pubs []stream.LocationPublisher
	if s.Redis != nil {
		pubs = append(pubs, stream.NewRedisPublisher(s.Redis))
	}
	if s.DB != nil {
		pubs = append(pubs, tracking.NewService(s.DB))
	}
	return pubs
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "rooms": s.Stream.RoomCount()})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, stream.HandlerOptions{
		IdleTimeout:  s.Cfg.WSIdleTimeout,
		WriteTimeout: s.Cfg.WSWriteTimeout,
		Router:       s.Directions,
		ETAPolicy:    eta.Policy{Interval: s.Cfg.ETAInterval, DistanceThresholdM: s.Cfg.ETADistanceThresholdM},
		Logger:       s.Log.Named("stream"),
	})
	stops := stop.NewService(s.querier())
	stop.RegisterRoutes(s.App.Group("/stops"), stops, jwtMiddleware)
	batch.RegisterRoutes(s.App, batch.NewService(batch.NewStore(s.querier()), s.Planner, stops, s.Log.Named("batch")), jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), tracking.NewService(s.querier()), jwtMiddleware)
}
