package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ridedispatch/internal/config"
	"ridedispatch/internal/domain"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/realtime"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler     *handler.RideHandler
	DriverHandler   *handler.DriverHandler
	CustomerHandler *handler.CustomerHandler
	Gateway         *realtime.Gateway
	Auth            middleware.IdentityResolver
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
	Logger          *zap.Logger
	Config          *config.Config
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimit(deps.Config.RateLimit.PerMinute, deps.Config.RateLimit.Burst))

	// Registration and the websocket handshake authenticate on their own.
	v1.POST("/customers", deps.CustomerHandler.Register)
	v1.POST("/drivers", deps.DriverHandler.Register)
	v1.GET("/ws", deps.Gateway.Handle)

	authed := v1.Group("")
	authed.Use(middleware.RequireAuth(deps.Auth))
	authed.Use(middleware.NewRelicIdentity())
	authed.Use(middleware.Idempotency(deps.RedisClient, deps.Logger))

	driverOnly := middleware.RequireRole(domain.RoleDriver)
	customerOnly := middleware.RequireRole(domain.RoleCustomer)

	rides := authed.Group("/rides")
	{
		rides.POST("", customerOnly, deps.RideHandler.RequestRide)
		rides.GET("/:id", deps.RideHandler.GetRide)
		rides.GET("/:id/dispatch", customerOnly, deps.RideHandler.GetDispatch)
		rides.POST("/:id/accept", driverOnly, deps.RideHandler.Accept)
		rides.POST("/:id/arrive", driverOnly, deps.RideHandler.Arrive)
		rides.POST("/:id/wait", driverOnly, deps.RideHandler.Wait)
		rides.POST("/:id/bypass-wait", driverOnly, deps.RideHandler.BypassWait)
		rides.POST("/:id/start", driverOnly, deps.RideHandler.Start)
		rides.POST("/:id/complete", driverOnly, deps.RideHandler.Complete)
		rides.POST("/:id/withdraw", driverOnly, deps.RideHandler.Withdraw)
		rides.POST("/:id/cancel", deps.RideHandler.Cancel)
	}

	drivers := authed.Group("/drivers/me", driverOnly)
	{
		drivers.POST("/location", deps.DriverHandler.UpdateLocation)
		drivers.POST("/online", deps.DriverHandler.GoOnline)
		drivers.POST("/offline", deps.DriverHandler.GoOffline)
	}

	customers := authed.Group("/customers/me", customerOnly)
	{
		customers.GET("/rides", deps.CustomerHandler.ListRides)
	}

	return router
}
