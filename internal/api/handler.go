package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"campus-events/internal/service"
	"campus-events/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the core operations exposed over HTTP
type Services struct {
	Events        *service.EventService
	Registrations *service.RegistrationService
	Orders        *service.OrderService
	Attendance    *service.AttendanceService
}

// Handler contains HTTP handlers
type Handler struct {
	events        *service.EventService
	registrations *service.RegistrationService
	orders        *service.OrderService
	attendance    *service.AttendanceService
	checks        map[string]Pinger
	corsOrigins   []string
}

// NewHandler creates a new HTTP handler. checks are the dependencies that
// must answer before /ready reports ready. An empty corsOrigins allows any origin.
func NewHandler(svc Services, checks map[string]Pinger, corsOrigins []string) *Handler {
	return &Handler{
		events:        svc.Events,
		registrations: svc.Registrations,
		orders:        svc.Orders,
		attendance:    svc.Attendance,
		checks:        checks,
		corsOrigins:   corsOrigins,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(corsMiddleware(h.corsOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", actorMiddleware())
	{
		v1.POST("/events", h.createEvent)
		v1.GET("/events", h.listEvents)
		v1.GET("/events/:id", h.getEvent)
		v1.PATCH("/events/:id", h.updateEvent)
		v1.PUT("/organizer/webhook", h.setWebhook)

		v1.POST("/events/:id/registrations", h.register)
		v1.DELETE("/events/:id/registrations/me", h.cancelRegistration)
		v1.GET("/events/:id/registrations", h.listEventRegistrations)
		v1.GET("/me/registrations", h.listMyRegistrations)
		v1.GET("/registrations/:id", h.getRegistration)
		v1.GET("/registrations/:id/ticket", h.getTicketImage)

		v1.POST("/events/:id/purchases", h.purchase)
		v1.POST("/events/:id/orders", h.createOrder)
		v1.PUT("/registrations/:id/payment-proof", h.uploadProof)
		v1.PATCH("/registrations/:id/order-status", h.updateOrderStatus)
		v1.GET("/events/:id/items/:itemId/availability", h.itemAvailability)

		v1.POST("/events/:id/scans", h.scan)
		v1.POST("/registrations/:id/attendance-override", h.overrideAttendance)
		v1.GET("/registrations/:id/attendance-history", h.attendanceHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	for name, dep := range h.checks {
		if err := dep.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "unavailable",
				"dependency": name,
				"details":    err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// bind decodes the JSON body into req, answering 400 on failure
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
