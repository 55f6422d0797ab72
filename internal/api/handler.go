package api

import (
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes the operational surface: health probes, metrics, and a
// read-only order listing for dashboards. Lifecycle operations are not
// reachable over HTTP.
type Handler struct {
	orders store.OrderStore
}

// NewHandler creates a new HTTP handler
func NewHandler(orders store.OrderStore) *Handler {
	return &Handler{orders: orders}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders", h.listOrders)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listOrders serves the dashboard listing, filtered by status, payment
// status and creation date range. Eventually consistent with in-flight
// single-order writes.
func (h *Handler) listOrders(c *gin.Context) {
	var filter store.ListFilter

	if v := c.Query("status"); v != "" {
		s := models.OrderStatus(v)
		if !models.ValidOrderStatus(s) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		filter.Status = &s
	}
	if v := c.Query("payment_status"); v != "" {
		s := models.PaymentStatus(v)
		if !models.ValidPaymentStatus(s) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_status filter"})
			return
		}
		filter.PaymentStatus = &s
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		filter.To = &t
	}

	orders, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list orders",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
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
