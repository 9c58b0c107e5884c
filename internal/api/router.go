package api

import (
	"fmt"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/certificate-system/internal/api/docs"
	"github.com/99minutos/certificate-system/internal/api/handler"
	"github.com/99minutos/certificate-system/internal/api/middleware"
	"github.com/99minutos/certificate-system/internal/core/ports"
	"github.com/99minutos/certificate-system/internal/core/service"
)

// multipartOverhead is the room left in the body limit for form fields and
// part headers around the image itself.
const multipartOverhead = 1 << 20

const defaultTokenTTL = 12 * time.Hour

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Certificates ports.CertificateService
	Auth         ports.AuthService
	// Issuer enables POST /api/certificates; nil leaves the route unmounted.
	Issuer ports.CertificateIssuer
	// Limiter throttles uploads per client; nil disables throttling.
	Limiter middleware.Limiter
	Checks  []handler.DependencyCheck

	JWTSecret string
	// TokenTTL is the lifetime of login tokens; zero means 12h.
	TokenTTL      time.Duration
	MaxImageBytes int64
	StaticDir     string

	// MetricsRegisterer receives the HTTP metrics; nil means the default
	// Prometheus registerer.
	MetricsRegisterer prometheus.Registerer
	Logger            zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	maxImageBytes := deps.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = service.DefaultMaxImageBytes
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(echomiddleware.CORS())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "certificates",
		Subsystem:  "http",
		Registerer: deps.MetricsRegisterer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Dependencies ---
	certHandler := handler.NewCertificateHandler(deps.Certificates, maxImageBytes).WithIssuer(deps.Issuer)
	authHandler := handler.NewAuthHandler(deps.Auth, deps.Logger)
	if deps.JWTSecret != "" {
		tokenTTL := deps.TokenTTL
		if tokenTTL <= 0 {
			tokenTTL = defaultTokenTTL
		}
		authHandler.WithTokens(func(subject, role string) (string, error) {
			return middleware.SignToken(deps.JWTSecret, subject, role, tokenTTL)
		})
	}

	uploadMiddleware := []echo.MiddlewareFunc{
		echomiddleware.BodyLimit(fmt.Sprintf("%dK", (maxImageBytes+multipartOverhead)/1024)),
	}
	if deps.Limiter != nil {
		uploadMiddleware = append(uploadMiddleware, middleware.RateLimit(deps.Limiter, deps.Logger))
	}

	// --- Certificate routes (public) ---
	apiGroup := e.Group("/api")
	apiGroup.POST("/certificate", certHandler.Upload, uploadMiddleware...)
	apiGroup.GET("/certificate/:ref", certHandler.Retrieve)
	apiGroup.GET("/certificates/:id", certHandler.Get)
	apiGroup.GET("/certificates/:id/image", certHandler.Image)
	apiGroup.GET("/proofs/:token", certHandler.VerifyProof)

	// --- Issuing (bearer token, teacher role from the registry) ---
	if deps.Issuer != nil {
		issueMiddleware := append([]echo.MiddlewareFunc{middleware.Auth(deps.JWTSecret)}, uploadMiddleware...)
		apiGroup.POST("/certificates", certHandler.Issue, issueMiddleware...)
	}

	// --- Auth routes ---
	apiGroup.POST("/login", authHandler.Login)
	apiGroup.POST("/users", authHandler.RegisterUser,
		middleware.Auth(deps.JWTSecret),
		middleware.RBAC(middleware.RoleAdmin),
	)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks...)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if deps.StaticDir != "" {
		e.Static("/", deps.StaticDir)
	}

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error()
			}
			if v.Error != nil {
				ev = ev.Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
