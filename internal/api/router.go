package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetgrid/fleet-backend-go/internal/config"
	"github.com/fleetgrid/fleet-backend-go/internal/database"
	"github.com/fleetgrid/fleet-backend-go/internal/handler"
	"github.com/fleetgrid/fleet-backend-go/internal/middleware"
	"github.com/fleetgrid/fleet-backend-go/internal/repository"
	"github.com/fleetgrid/fleet-backend-go/internal/service"
	"github.com/fleetgrid/fleet-backend-go/internal/tachograph"
)

// SetupRouter wires repositories, services, and handlers onto the gin
// engine. The extractor is injected so deployments can plug in the
// external tachograph decoder.
func SetupRouter(cfg *config.Config, extractor tachograph.Extractor) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	db := database.GetDB()
	vehicleRepo := repository.NewVehicleRepository(db)
	driverRepo := repository.NewDriverRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	telematicsService := service.NewTelematicsService(vehicleRepo, driverRepo, positionRepo)
	activityService := service.NewActivityService(driverRepo, activityRepo, positionRepo, extractor)

	telematicsHandler := handler.NewTelematicsHandler(telematicsService)
	tachographHandler := handler.NewTachographHandler(activityService)
	vehicleHandler := handler.NewVehicleHandler(vehicleRepo)
	driverHandler := handler.NewDriverHandler(driverRepo)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Fleet Backend API is running",
		})
	})

	api := r.Group("/api/v1")

	// Device heartbeat stays outside auth; trackers carry no tokens
	api.POST("/telematics/ping", telematicsHandler.Ping)

	protected := api.Group("")
	if cfg.JWTSecret != "" {
		protected.Use(middleware.Auth(cfg.JWTSecret))
	}

	{
		telematics := protected.Group("/telematics")
		telematics.Use(middleware.RateLimit(cfg.IngestRateLimit, time.Minute))
		{
			telematics.POST("/positions", telematicsHandler.IngestPosition)
			telematics.POST("/positions/batch", telematicsHandler.IngestBatch)
			telematics.GET("/status", telematicsHandler.ListVehicleStatus)
			telematics.GET("/status/:vehicleId", telematicsHandler.GetVehicleStatus)
			telematics.GET("/stats/online", telematicsHandler.OnlineStats)
			telematics.GET("/track/:vehicleId/distance", telematicsHandler.GetTrackDistance)
		}

		tacho := protected.Group("/tachograph")
		{
			tacho.POST("/upload", tachographHandler.Upload)
			tacho.POST("/activities", tachographHandler.CreateActivity)
			tacho.GET("/activities/:driverId", tachographHandler.GetActivities)
			tacho.GET("/summary/:driverId", tachographHandler.GetSummary)
			tacho.POST("/fuse-gps/:driverId", tachographHandler.FuseGPS)
		}

		vehicles := protected.Group("/vehicles")
		{
			vehicles.GET("", vehicleHandler.List)
			vehicles.POST("", vehicleHandler.Create)
			vehicles.GET("/:id", vehicleHandler.GetByID)
		}

		drivers := protected.Group("/drivers")
		{
			drivers.GET("", driverHandler.List)
			drivers.POST("", driverHandler.Create)
			drivers.GET("/:id", driverHandler.GetByID)
		}
	}

	return r
}
