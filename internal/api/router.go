// Package api wires together all HTTP routes for the task manager backend.
//
// Route grouping:
//   - /health, /ready and /version sit outside /api/v1 and are never rate limited.
//   - /api/v1 carries security headers, optional bearer auth and the rate limiter.
//     Each route then declares its own requirement (a role set, a permission set or
//     plain authentication) at registration time below; routes without one are public.
//
// Route requirements only gate coarse access. Organization isolation and the
// finer role checks on task mutations are enforced again by the services.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/task-manager/task-manager/internal/api/handlers"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/config"
	"github.com/task-manager/task-manager/internal/db"
	"github.com/task-manager/task-manager/internal/db/repositories"
	"github.com/task-manager/task-manager/internal/middleware"
	"github.com/task-manager/task-manager/internal/services"
)

// Dependencies are the process-level resources the router builds on. Redis and
// Dispatcher are optional: a nil Redis disables rate limiting and a nil Dispatcher
// keeps audit entries in the database only.
type Dependencies struct {
	DB         *sql.DB
	Redis      redis.UniversalClient
	Dispatcher services.EntryDispatcher
	Version    string
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.New()

	sqlxDB := sqlx.NewDb(deps.DB, "postgres")
	tx := db.NewTransactor(sqlxDB)

	// Initialize repositories
	orgRepo := repositories.NewOrganizationRepository(sqlxDB)
	userRepo := repositories.NewUserRepository(sqlxDB)
	taskRepo := repositories.NewTaskRepository(sqlxDB)
	auditRepo := repositories.NewAuditRepository(sqlxDB)

	// Initialize services
	auditService := services.NewAuditService(auditRepo, deps.Dispatcher)
	taskService := services.NewTaskService(taskRepo, auditService, tx)
	authService := services.NewAuthService(userRepo, orgRepo, tx, cfg.Auth.JWTExpiry, cfg.Auth.BcryptCost)
	orgService := services.NewOrganizationService(orgRepo)

	authHandlers := handlers.NewAuthHandlers(authService)
	orgHandlers := handlers.NewOrganizationHandlers(orgService)
	taskHandlers := handlers.NewTaskHandlers(taskService)
	auditHandlers := handlers.NewAuditHandlers(auditService)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))

	router.GET("/health", healthCheckHandler(deps.DB))
	router.GET("/ready", readinessHandler(deps.DB, deps.Redis))
	router.GET("/version", versionHandler(deps.Version))

	securityHeaders := middleware.APISecurityHeadersConfig()
	securityHeaders.EnableHSTS = cfg.Security.TLS.Enabled

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.SecurityHeadersMiddleware(securityHeaders))
	apiV1.Use(middleware.OptionalAuthMiddleware())

	var generalLimit, authLimit gin.HandlerFunc = passThrough, passThrough
	if rl := cfg.Security.RateLimiting; rl.Enabled && deps.Redis != nil {
		generalLimit = middleware.RateLimitMiddleware(middleware.NewRateLimiter(deps.Redis, "api", middleware.RateLimitConfig{
			RequestsPerMinute: rl.RequestsPerMinute,
			BurstSize:         rl.Burst,
		}))
		authLimit = middleware.RateLimitMiddleware(middleware.NewRateLimiter(deps.Redis, "auth", middleware.AuthRateLimitConfig()))
	}

	// Public authentication endpoints, with a stricter budget against credential stuffing
	authGroup := apiV1.Group("/auth")
	{
		authGroup.POST("/register", authLimit, authHandlers.RegisterHandler())
		authGroup.POST("/login", authLimit, authHandlers.LoginHandler())
		authGroup.GET("/me", generalLimit, middleware.RequireAuthenticated(), authHandlers.MeHandler())
	}

	limited := apiV1.Group("")
	limited.Use(generalLimit)
	{
		limited.GET("/organizations", orgHandlers.ListOrganizationsHandler())
		limited.GET("/organizations/:id",
			middleware.RequireAuthenticated(),
			orgHandlers.GetOrganizationHandler())

		limited.POST("/tasks",
			middleware.RequireRoles(auth.RoleAdmin, auth.RoleOwner),
			taskHandlers.CreateTaskHandler())
		limited.GET("/tasks",
			middleware.RequirePermissions(auth.PermTaskRead),
			taskHandlers.ListTasksHandler())
		limited.GET("/tasks/:id",
			middleware.RequirePermissions(auth.PermTaskRead),
			taskHandlers.GetTaskHandler())
		limited.PUT("/tasks/:id",
			middleware.RequireRoles(auth.RoleAdmin, auth.RoleOwner),
			taskHandlers.UpdateTaskHandler())
		limited.DELETE("/tasks/:id",
			middleware.RequireRoles(auth.RoleAdmin, auth.RoleOwner),
			taskHandlers.DeleteTaskHandler())

		limited.GET("/audit-log",
			middleware.RequireRoles(auth.RoleOwner),
			auditHandlers.ListAuditLogHandler())
	}

	return router
}

func passThrough(c *gin.Context) { c.Next() }

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. Unlike /health it
// also probes Redis when rate limiting depends on it.
func readinessHandler(db *sql.DB, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}

		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler(version string) gin.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware writes one access log record per request. The global slog handler
// installed by telemetry.SetupLogger decides between JSON and text output.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logRequest(c, time.Since(start), path, query)
	}
}

func logRequest(c *gin.Context, latency time.Duration, path, query string) {
	status := c.Writer.Status()
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	requestID := c.GetString(middleware.RequestIDKey)
	attrs := []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", status),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", requestID),
		slog.String("user_agent", c.Request.UserAgent()),
	}
	if p := middleware.GetPrincipal(c); p != nil {
		attrs = append(attrs,
			slog.String("subject", p.SubjectID),
			slog.String("organization_id", p.OrganizationID),
		)
	}

	slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, DELETE, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
