// Package router assembles the HTTP engine: middleware, health checks and
// module routes.
package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"institute_backend/internal/conversion"
	"institute_backend/internal/leads"
	"institute_backend/platform/config"
	"institute_backend/platform/httpkit"
	"institute_backend/platform/logger"
)

// Pinger reports the health of an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Env        string
	HTTPConfig config.HTTPConfig
	JWTConfig  config.JWTConfig
	Log        *logger.Logger
	DB         Pinger
	Redis      Pinger
	Leads      *leads.Module
	Conversion *conversion.Module
}

// New builds the gin engine.
func New(deps Deps) *gin.Engine {
	if strings.EqualFold(deps.Env, "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(deps.Log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(deps.HTTPConfig))

	globalLimiter := httpkit.NewIPRateLimiter(rate.Limit(50), 100, deps.Log)
	engine.Use(globalLimiter.RateLimit())

	engine.GET("/healthz", healthHandler(deps.DB, deps.Redis))

	api := engine.Group("/api/v1")

	// Public conversion endpoints carry their own stricter limiter: the
	// caller is an unauthenticated prospective student.
	otpLimiter := httpkit.NewOTPRateLimiter(deps.Log)
	public := api.Group("")
	public.Use(otpLimiter.RateLimit())
	deps.Conversion.RegisterRoutes(public)

	protected := api.Group("")
	protected.Use(httpkit.AuthRequired(deps.JWTConfig))
	deps.Leads.RegisterRoutes(protected)

	return engine
}

func corsMiddleware(cfg config.HTTPConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = cfg.GetCORSOrigins()
	}
	return cors.New(corsConfig)
}

func healthHandler(database, cache Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"database": "ok", "redis": "ok"}

		if err := database.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	}
}
