package server

import (
	"github.com/SwipSwup/the-weather-archive/internal/auth"
	"github.com/SwipSwup/the-weather-archive/internal/config"
	"github.com/SwipSwup/the-weather-archive/internal/metrics"
	"github.com/SwipSwup/the-weather-archive/internal/query"
	"github.com/SwipSwup/the-weather-archive/internal/render"
	"github.com/SwipSwup/the-weather-archive/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config          config.Config
	DB              *pgxpool.Pool
	ObjectStore     *minio.Client
	Cache           *redis.Client
	UploadService   *upload.Service
	QueryService    *query.Service
	RenderScheduler *render.Scheduler
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")

	if deps.QueryService != nil {
		query.RegisterRoutes(api, deps.QueryService)
	}

	protected := api.Group("/")
	protected.Use(auth.APIKeyMiddleware(deps.Config.Auth.APIKey))

	if deps.UploadService != nil {
		upload.RegisterRoutes(protected, deps.UploadService)
	}
	if deps.RenderScheduler != nil {
		render.RegisterRoutes(protected, deps.RenderScheduler)
	}

	return router
}
