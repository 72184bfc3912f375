package http

import (
	"log/slog"
	"os"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/cache"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Store    handlers.UserStore
	JWT      *auth.Manager
	Profiles cache.ProfileCache
	Metrics  *observability.Prom
	Registry *prometheus.Registry
	Ping     func() error
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if os.Getenv("APP_ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(cfg.MaxUploadBytes + 1<<20))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	}

	if deps.Metrics != nil {
		r.Use(deps.Metrics.GinHandleMiddleware())
	}

	r.Use(otelgin.Middleware("userhub"))

	// health + metrics

	h := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// account routes

	userHandler := handlers.NewUserHandler(deps.Store, deps.JWT, deps.Profiles, log)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir, cfg.MaxUploadBytes, log)
	authMiddleware := middlewares.NewAuthMiddleware(deps.JWT)

	requireJSON := middlewares.RequireJSON()

	r.GET("/", userHandler.Root)
	r.DELETE("/", userHandler.RootDelete)
	r.GET("/user-dashboard", authMiddleware.RequireAuth(), userHandler.Dashboard)

	r.POST("/register", requireJSON, userHandler.Register)
	r.POST("/login", requireJSON, userHandler.Login)
	r.PATCH("/:id", requireJSON, userHandler.Update)

	// multipart, so no RequireJSON here
	r.POST("/upload", uploadHandler.Upload)

	return r
}
