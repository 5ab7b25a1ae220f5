package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

type Dependencies struct {
	CheckIns    handler.CheckInProcessor
	Enrollments handler.EnrollmentManager
	Identifier  handler.Identifier
	Locations   handler.LocationLookup
	Geofence    *geo.Validator
	Terminals   middleware.TerminalRepository
	LastSeen    middleware.LastSeenRecorder
	Hub         *ws.Hub
	AdminAPIKey string

	// Optional. A nil RateLimits counts per process.
	RateLimits  middleware.CounterStore
	ReadyChecks []handler.ReadyCheck
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	db          handler.Pinger
	rateLimiter *middleware.RateLimiter
}

// NewRouter builds the fiber app. db may be nil, in which case /ready
// always succeeds; deps may be nil to serve only the public endpoints.
func NewRouter(logger *slog.Logger, db handler.Pinger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Ponto API",
		BodyLimit:    12 * 1024 * 1024,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
		db:     db,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization," + middleware.AdminKeyHeader,
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var checks []handler.ReadyCheck
	if r.deps != nil {
		checks = r.deps.ReadyChecks
	}
	healthHandler := handler.NewHealthHandler(r.db, checks...)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if r.deps == nil {
		return
	}

	v1 := r.app.Group("/v1")

	v1.Use(middleware.Auth(middleware.AuthDependencies{
		Terminals: r.deps.Terminals,
		Logger:    r.logger,
		LastSeen:  r.deps.LastSeen,
	}))

	// Per terminal, so it must come after auth
	limits := middleware.DefaultRateLimiterConfig()
	limits.Store = r.deps.RateLimits
	limits.Logger = r.logger
	r.rateLimiter = middleware.NewRateLimiter(limits)
	v1.Use(r.rateLimiter.Handler())

	checkIns := handler.NewCheckInHandler(r.deps.CheckIns, r.logger)
	v1.Post("/checkins/token", checkIns.TokenCheckIn)
	v1.Post("/checkins/face", checkIns.FaceCheckIn)
	v1.Get("/attendance/:employee_id/status", checkIns.Status)

	geofence := handler.NewGeofenceHandler(r.deps.Locations, r.deps.Geofence, r.logger)
	v1.Get("/geofence/check", geofence.Check)

	if r.deps.Hub != nil {
		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}

	admin := v1.Group("/admin", middleware.AdminKey(r.deps.AdminAPIKey, r.logger))
	adminHandler := handler.NewAdminHandler(r.deps.Enrollments, r.deps.Identifier, r.logger)
	admin.Post("/enrollments", adminHandler.Enroll)
	admin.Delete("/enrollments/:employee_id", adminHandler.RemoveEnrollment)
	admin.Post("/identify", adminHandler.Identify)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
