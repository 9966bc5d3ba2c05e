package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/models"
	rshandler "github.com/fedtaxi/hojaruta/internal/routesheet/handler"
	rsservice "github.com/fedtaxi/hojaruta/internal/routesheet/service"
	"github.com/fedtaxi/hojaruta/internal/sessions"
	"github.com/fedtaxi/hojaruta/internal/tokens"
	"github.com/fedtaxi/hojaruta/internal/users"
	"github.com/fedtaxi/hojaruta/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Deps bundles what the router needs. Redis, Gatherer and Checks are optional.
type Deps struct {
	Config      *config.Config
	Users       *users.Service
	Sessions    *sessions.Service
	Issuer      *tokens.Issuer
	Blacklist   *sessions.Blacklist
	RouteSheets rsservice.Service
	Redis       redis.UniversalClient
	Gatherer    prometheus.Gatherer
	// Checks are readiness probes keyed by dependency name.
	Checks map[string]func(ctx context.Context) error
}

var startTime = time.Now()

// NewRouter assembles the gin engine with every public and authenticated route.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readiness(d.Checks))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	RegisterSwagger(r)

	// Auth endpoints are limited per client IP; everything behind AuthMiddleware
	// is limited per user.
	public := r.Group("/")
	authed := r.Group("/", middleware.AuthMiddleware(d.Issuer, d.Blacklist))
	if d.Config.RateLimit.Enabled {
		public.Use(rateLimiter(d))
		authed.Use(rateLimiter(d))
	}
	NewAuthHandler(d.Config, d.Users, d.Sessions, d.Issuer, d.Blacklist).Register(public)

	NewMeHandler(d.Users).Register(authed)
	if d.RouteSheets != nil {
		rshandler.RegisterRouteSheetRoutes(authed, d.RouteSheets)
	}
	NewAdminHandler(d.Users).Register(authed.Group("/", middleware.RequireRole(models.RoleAdmin)))

	return r
}

func rateLimiter(d Deps) gin.HandlerFunc {
	rl := d.Config.RateLimit
	if rl.UseRedis && d.Redis != nil {
		return middleware.RedisRateLimitMiddleware(d.Redis, rl.RPS, rl.Burst, time.Duration(rl.WindowSeconds)*time.Second)
	}
	return middleware.RateLimitMiddleware(rl.RPS, rl.Burst)
}

// cors is a permissive policy for development; X-Client-Type must be allowed for web clients.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		} else {
			// credentials (the refresh cookie) require an explicit origin
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+ClientTypeHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// readiness returns 200 only when every check passes.
func readiness(checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}
		for name, check := range checks {
			ok := check(ctx) == nil
			deps[name] = ok
			ready = ready && ok
		}
		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime).Round(time.Second))})
	}
}
