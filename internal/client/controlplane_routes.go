package client

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ledgersync/ledgersync/internal/client/handlers"
	"github.com/ledgersync/ledgersync/internal/client/middleware"
	"github.com/ledgersync/ledgersync/internal/version"
)

type RouteConfig struct {
	Auth middleware.TokenAuthConfig
}

func SetupRoutes(svc handlers.SyncService, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rateLimiter := limiter.New(memory.NewStore(), limiter.Rate{
		Period: 1 * time.Second,
		Limit:  20,
	})

	statusH := handlers.NewStatusHandler(svc)
	syncH := handlers.NewSyncHandler(svc)
	entityH := handlers.NewEntityHandler(svc)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", IndexHandler)

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", statusH.Status)
		v1.GET("/devices", syncH.Devices)
		v1.POST("/sync", syncH.Now)
		v1.POST("/bootstrap", syncH.Bootstrap)
		v1.POST("/snapshot", syncH.UploadSnapshot)

		v1Entities := v1.Group("/entities")
		{
			v1Entities.GET("/:entity", entityH.List)
			v1Entities.PUT("/:entity/:id", entityH.Put)
			v1Entities.DELETE("/:entity/:id", entityH.Delete)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}
