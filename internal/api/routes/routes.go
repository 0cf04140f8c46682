package routes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carwave/carpool/internal/api/handlers"
	"github.com/carwave/carpool/internal/observability"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}
	r.Use(Metrics())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(handlers.ActingUser())
	{
		v1.GET("/ws", h.HandleWebSocket)

		drives := v1.Group("/drives")
		{
			drives.GET("/search", h.SearchRides)
			drives.POST("", h.CreateRide)
			drives.GET("/:id", h.GetRide)
			drives.PATCH("/:id", h.UpdateRide)
			drives.DELETE("/:id", h.CancelRide)
			drives.GET("/:id/passengers", h.ListPassengers)
			drives.GET("/:id/passenger-requests", h.ListRequests)
			drives.POST("/:id/passenger-requests", h.CreateRequest)
			drives.POST("/:id/passenger-requests/:user_id", h.DecideRequest)
			drives.DELETE("/:id/passenger-requests/:user_id", h.WithdrawRequest)
		}

		cars := v1.Group("/cars")
		{
			cars.POST("", h.CreateCar)
			cars.GET("/:plate", h.GetCar)
			cars.PATCH("/:plate", h.UpdateCar)
			cars.DELETE("/:plate", h.DeleteCar)
		}

		users := v1.Group("/users")
		{
			users.POST("", h.CreateUser)
			users.GET("/:id", h.GetUser)
			users.PATCH("/:id", h.UpdateUser)
			users.DELETE("/:id", h.DeleteUser)
			users.GET("/:id/reputation", h.GetReputation)
			users.GET("/:id/reviews/eligibility", h.ReviewEligibility)
			users.PUT("/:id/reviews", h.UpsertReview)
		}

		v1.GET("/tags", h.SuggestTags)
	}
}

// Metrics records request counts and latency per route
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		observability.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		observability.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
