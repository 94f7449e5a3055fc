package server

import (
	"context"

	"backend-groupride/internal/analytics"
	"backend-groupride/internal/config"
	"backend-groupride/internal/group"
	"backend-groupride/internal/history"
	"backend-groupride/internal/ride"
	"backend-groupride/internal/shared/clock"
	"backend-groupride/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators chosen by the caller. History is required;
// Exporter, Uploader and Redis may be nil.
type Deps struct {
	History  history.Store
	Exporter ride.Exporter
	Uploader ride.Uploader
	Redis    *redis.Client
	Clock    clock.Clock
}

type Server struct {
	App         *fiber.App
	Cfg         config.Config
	History     history.Store
	Tracker     *ride.Tracker
	Analytics   *analytics.Engine
	Coordinator *group.Coordinator
	Invites     *group.Invites
	Stream      *stream.Hub

	cancel context.CancelFunc
}

// NewServer wires the ride services and starts the group event loop and the
// analytics cache watcher. Call Close to stop them.
func NewServer(cfg config.Config, deps Deps) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	filter := ride.DefaultFilterConfig()
	if cfg.MaxAccuracyM > 0 {
		filter.MaxAccuracyM = cfg.MaxAccuracyM
	}
	if cfg.MaxSpeedMps > 0 {
		filter.MaxSpeedMps = cfg.MaxSpeedMps
	}

	acfg := analytics.DefaultConfig()
	if cfg.QualifyingDistanceM > 0 {
		acfg.QualifyingDistanceM = cfg.QualifyingDistanceM
	}
	if cfg.DailyGoalM > 0 {
		acfg.DailyGoalM = cfg.DailyGoalM
	}
	acfg.WeekStart = cfg.FirstWeekday()
	acfg.Location = cfg.Location()
	engine := analytics.NewEngine(deps.History, analytics.NewCache(deps.Redis, 0), clk, acfg)

	// writes made through this server drop cached views before they return
	store := engine.Invalidating(deps.History)
	tracker := ride.NewTracker(ride.TrackerConfig{
		Filter:               filter,
		RemoteSyncMinSeconds: cfg.RemoteSyncMinSeconds,
		StrictDuplicates:     cfg.StrictDuplicates,
	}, clk, store, deps.Exporter, deps.Uploader)

	hostID := group.PeerID(cfg.DeviceID)
	if hostID == "" {
		hostID = "host"
	}
	hub := stream.NewHub(cfg.GroupSessionID, deps.Redis)
	coord := group.NewCoordinator(group.CoordinatorConfig{HostID: hostID, Capacity: cfg.GroupCapacity}, hub, clk)
	invites := group.NewInvites(cfg.InviteSecret, cfg.GroupSessionID, group.DefaultInviteTTL, clk)

	ctx, cancel := context.WithCancel(context.Background())
	changes, unsubscribe := deps.History.Subscribe()
	go func() {
		defer unsubscribe()
		engine.Watch(ctx, changes)
	}()
	go coord.Run(ctx)

	s := &Server{
		App:         app,
		Cfg:         cfg,
		History:     store,
		Tracker:     tracker,
		Analytics:   engine,
		Coordinator: coord,
		Invites:     invites,
		Stream:      hub,
		cancel:      cancel,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "peers": s.Stream.PeerCount()})
	})

	ride.RegisterRoutes(s.App.Group("/rides"), s.Tracker)
	history.RegisterRoutes(s.App.Group("/history"), s.History)
	analytics.RegisterRoutes(s.App.Group("/analytics"), s.Analytics)

	g := s.App.Group("/group")
	group.RegisterRoutes(g, s.Coordinator, s.Invites)
	stream.RegisterRoutes(g, s.Stream, s.Invites)
}

// Close stops background loops and ends the group session. The caller still
// owns the history store and the Redis client.
func (s *Server) Close() error {
	s.cancel()
	return s.Coordinator.Close()
}
