package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/time/rate"

	_ "github.com/clinicflow/rdv-api/docs"
	"github.com/clinicflow/rdv-api/internal/api/handler"
	"github.com/clinicflow/rdv-api/internal/api/middleware"
	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Auth         ports.AuthService
	Appointments ports.AppointmentService
	Tokens       ports.TokenService
	Mongo        *mongo.Database
	Redis        *redis.Client // nil when Redis is disabled
	Log          zerolog.Logger
	// Registry receives the HTTP metrics and backs /metrics. Nil uses the
	// default Prometheus registry.
	Registry *prometheus.Registry
}

// Options tune the global middleware.
type Options struct {
	CORSOrigin   string
	RateLimitRPS float64
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(deps.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Logger(deps.Log))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{opts.CORSOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID, handler.HeaderIdempotencyKey},
	}))
	e.Use(echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/metrics" || c.Path() == "/health" },
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(opts.RateLimitRPS),
			Burst:     max(1, int(opts.RateLimitRPS*2)),
			ExpiresIn: 3 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "clinic",
		Registerer: registerer,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	apptHandler := handler.NewAppointmentHandler(deps.Appointments)
	authn := middleware.Auth(deps.Tokens)

	doctor := middleware.RBAC(domain.RoleDoctor)
	patient := middleware.RBAC(domain.RolePatient)
	receptionist := middleware.RBAC(domain.RoleReceptionist)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/secretaires-count", authHandler.ReceptionistCount)
	auth.POST("/register-user", authHandler.RegisterUser, authn, receptionist)
	auth.GET("/users", authHandler.ListUsers, authn, receptionist)
	auth.GET("/patient", apptHandler.ListPatient, authn, patient)

	// --- Appointment routes ---
	rdv := e.Group("/rdv", authn)
	rdv.GET("/patient", apptHandler.ListPatient, patient)
	rdv.POST("/demande", apptHandler.Request, patient)
	rdv.GET("/medecin", apptHandler.ListDoctor, doctor)
	rdv.PUT("/gerer", apptHandler.Resolve, doctor)
	rdv.POST("/creer", apptHandler.Create, receptionist)
	rdv.PUT("/assigner", apptHandler.Assign, receptionist)
	rdv.GET("/:id/historique", apptHandler.History, receptionist)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
