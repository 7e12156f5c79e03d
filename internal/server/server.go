// Package server contains the blog's HTTP pages, admin views and JSON API.
package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	_ "myblog/docs" // swagger docs
	"myblog/internal/auth"
	"myblog/internal/bootstrap"
	"myblog/internal/cache"
	"myblog/internal/config"
	"myblog/internal/database"
	"myblog/internal/featureflags"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/observability"
	"myblog/internal/repository"
	"myblog/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	db              *gorm.DB
	redis           *redis.Client
	redisErr        error
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	store           *repository.Store
	gateway         *auth.Gateway
	tokens          *auth.Tokens
	rateLimiter     *middleware.RateLimiter
	featureFlags    *featureflags.Manager
	userService     *service.UserService
	postService     *service.PostService
	tracingShutdown func(context.Context) error
}

// NewServer connects to the database and Redis, applies the schema and
// builds a server over them.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1.0,
	})
	if err != nil {
		return nil, err
	}

	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	s, err := NewServerWithDeps(cfg, rt.DB, rt.Redis)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	s.redisErr = rt.RedisErr
	s.tracingShutdown = shutdownTracing
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redis client keeps sessions and CSRF tokens in process memory and
// disables caching, token revocation and per-route rate limits.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	observability.SetLogger(middleware.Logger)

	hasher, err := auth.NewHasher(cfg.PasswordHasher)
	if err != nil {
		return nil, err
	}
	creds := auth.NewCredentials(hasher)

	var c *cache.Cache
	var sessions fiber.Storage
	if redisClient != nil {
		c = cache.New(redisClient)
		sessions = cache.NewSessionStorage(redisClient)
	}
	store := repository.NewStore(db, c)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL(), redisClient)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		store:          store,
		tokens:         tokens,
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env != "test"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		userService:    service.NewUserService(store, creds),
		postService:    service.NewPostService(store.Posts(), store.Users()),
	}
	server.gateway = auth.NewGateway(auth.GatewayConfig{
		Storage:      sessions,
		Expiration:   cfg.SessionTTL(),
		CookieSecure: cfg.SessionCookieSecure,
		Users:        store.Users(),
		Credentials:  creds,
		Tokens:       tokens,
	})
	return server, nil
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:               "myblog",
		Views:                 NewViews(),
		ErrorHandler:          s.errorHandler,
		UnescapePath:          true,
		DisableStartupMessage: s.config.Env == "test",
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler answers API clients with the JSON error envelope and browsers
// with the error page.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := models.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "error", err)
	}

	if middleware.WantsJSON(c) {
		if status >= fiber.StatusInternalServerError {
			err = models.NewInternalError(err)
		}
		return models.RespondWithError(c, status, err)
	}

	renderErr := s.render(c, status, "errors/error", fiber.Map{
		"Title":   fmt.Sprintf("%d", status),
		"Status":  status,
		"Message": errorMessage(err, status),
	})
	if renderErr != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "failed to render error page", "error", renderErr)
		return c.Status(status).SendString(errorMessage(err, status))
	}
	return nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:" + s.config.Port
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	limiterCfg := limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}
	if s.redis != nil {
		limiterCfg.Storage = cache.NewPrefixedStorage(s.redis, cache.LimiterKeyPrefix)
	}
	app.Use(limiter.New(limiterCfg))

	if s.config.CSRFEnabled {
		csrfCfg := csrf.Config{
			KeyLookup:      "form:_csrf",
			CookieName:     "myblog_csrf",
			CookieSameSite: "Lax",
			CookieSecure:   s.config.SessionCookieSecure,
			CookieHTTPOnly: true,
			Expiration:     time.Hour,
			ContextKey:     csrfLocal,
			KeyGenerator:   uuid.NewString,
			Next:           skipCSRF,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				middleware.Logger.WarnContext(c.UserContext(), "csrf check failed", "path", c.Path(), "error", err)
				return models.NewForbiddenError("The form expired or was tampered with. Please try again.")
			},
		}
		if s.redis != nil {
			csrfCfg.Storage = cache.NewPrefixedStorage(s.redis, cache.CSRFKeyPrefix)
		}
		app.Use(csrf.New(csrfCfg))
	}
}

// skipCSRF exempts probes, token exchange and bearer-authenticated API calls.
// A request carrying a bearer header is never authenticated from the session
// cookie, so API calls riding on the session are still checked.
func skipCSRF(c *fiber.Ctx) bool {
	path := c.Path()
	if strings.HasPrefix(path, "/health") || path == "/api/auth/token" {
		return true
	}
	_, bearer := middleware.BearerToken(c)
	return bearer && strings.HasPrefix(path, "/api/")
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	resolve := s.gateway.Resolve()
	requireAuth := s.gateway.RequireAuthenticated()
	requireAdmin := s.gateway.RequireRole(models.RoleAdmin)

	app.Get("/", resolve, s.Index)

	user := app.Group("/user")
	user.Get("/login", resolve, s.LoginPage)
	user.Post("/login", s.rateLimiter.Handler("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	user.Post("/logout", s.Logout)

	registration := s.featureFlags.Require(featureflags.OpenRegistration, nil)
	user.Get("/register", registration, resolve, s.RegisterPage)
	user.Post("/register", registration,
		s.rateLimiter.Handler("register", 3, 10*time.Minute, middleware.FailOpen), s.Register)

	user.Get("/profile", requireAuth, s.Profile)
	user.Get("/posts", requireAuth, s.MyPosts)
	user.Get("/posts/new", requireAuth, s.NewPostPage)
	user.Post("/posts/new", requireAuth, s.CreatePost)

	admin := app.Group("/admin", requireAuth, requireAdmin)
	admin.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/admin/dashboard") })
	admin.Get("/dashboard", s.Dashboard)
	admin.Get("/manage_users", s.ManageUsers)
	admin.Get("/manage_posts", s.ManagePosts)
	admin.Post("/users/:id/delete", s.AdminDeleteUser)
	admin.Post("/users/:id/promote", s.PromoteUser)
	admin.Post("/users/:id/demote", s.DemoteUser)
	admin.Post("/posts/:id/delete", s.AdminDeletePost)
	admin.Get("/monitor", monitor.New(monitor.Config{
		Title: "myblog runtime",
	}))

	api := app.Group("/api", s.featureFlags.Require(featureflags.APITokens, nil))
	api.Get("/swagger/*", swagger.HandlerDefault)
	apiAuth := api.Group("/auth")
	apiAuth.Post("/token", s.rateLimiter.Handler("token", 10, 5*time.Minute, middleware.FailOpen), s.IssueToken)
	apiAuth.Post("/revoke", requireAuth, s.RevokeToken)

	api.Get("/me", requireAuth, s.Me)
	api.Get("/posts", s.APIListPosts)
	api.Post("/posts", requireAuth,
		s.rateLimiter.Handler("create_post", 30, time.Minute, middleware.FailOpen), s.APICreatePost)
	api.Get("/users/:id/posts", s.APIUserPosts)

	apiAdmin := api.Group("/admin", requireAuth, requireAdmin)
	apiAdmin.Get("/stats", s.APIStats)
	apiAdmin.Get("/users", s.APIListUsers)
	apiAdmin.Put("/users/:id/role", s.APISetRole)
	apiAdmin.Delete("/users/:id", s.APIDeleteUser)
	apiAdmin.Get("/posts", s.APIListPosts)
	apiAdmin.Delete("/posts/:id", s.APIDeletePost)
	apiAdmin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis. A disabled
// Redis does not fail readiness. A configured Redis that was unreachable at
// startup is reported as degraded; one that stops answering later fails it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	switch {
	case s.redis != nil:
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	case s.redisErr != nil:
		redisStatus = "degraded"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus == "unhealthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus == "degraded":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"dialect":  database.Dialect(s.db),
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags returns configured feature flags and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	uid := actorID(c)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(uid),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := database.Close(s.db); err != nil {
		log.Printf("error closing sql DB: %v", err)
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	if s.tracingShutdown != nil {
		if err := s.tracingShutdown(ctx); err != nil {
			log.Printf("error flushing traces: %v", err)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
