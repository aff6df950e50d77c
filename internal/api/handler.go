package api

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/auth"
	"storefront/internal/realtime"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the domain services behind the HTTP API
type Services struct {
	Catalog   *service.CatalogService
	Cart      *service.CartService
	Wishlist  *service.WishlistService
	Orders    *service.OrderService
	Reviews   *service.ReviewService
	Queries   *service.QueryService
	Profiles  *service.ProfileService
	Dashboard *service.DashboardService
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config wires the handler's dependencies
type Config struct {
	Services           Services
	Hub                *realtime.Hub
	Verifier           auth.Verifier
	Resolver           auth.Resolver
	Readiness          []ReadinessCheck
	RateLimitPerMinute int
	Production         bool
	Heartbeat          time.Duration
}

// Handler contains HTTP handlers
type Handler struct {
	svc        Services
	hub        *realtime.Hub
	verifier   auth.Verifier
	resolver   auth.Resolver
	readiness  []ReadinessCheck
	rateLimit  int
	production bool
	heartbeat  time.Duration
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg Config) *Handler {
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Handler{
		svc:        cfg.Services,
		hub:        cfg.Hub,
		verifier:   cfg.Verifier,
		resolver:   cfg.Resolver,
		readiness:  cfg.Readiness,
		rateLimit:  cfg.RateLimitPerMinute,
		production: cfg.Production,
		heartbeat:  heartbeat,
		logger:     util.Named("http"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	registerValidators()

	router.Use(gin.Recovery())
	router.Use(requestLogger(h.logger))
	router.Use(prometheusMiddleware())
	router.Use(secureHeaders(h.production))
	if h.rateLimit > 0 {
		router.Use(rateLimitByIP(h.rateLimit, time.Minute))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(auth.Authenticate(h.verifier, h.resolver))
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/reviews", h.listReviews)
		v1.GET("/categories", h.listCategories)
	}

	me := v1.Group("/me", auth.RequireSession())
	{
		me.POST("/profile", h.registerProfile)
		me.GET("/profile", h.getProfile)
		me.PUT("/profile", h.updateProfile)
		me.GET("/stream", h.stream)
	}

	customer := v1.Group("/customer", auth.RequireRole(auth.CustomerArea))
	{
		customer.GET("/cart", h.getCart)
		customer.POST("/cart", h.addToCart)
		customer.PATCH("/cart/:id", h.updateCartItem)
		customer.DELETE("/cart/:id", h.removeCartItem)

		customer.GET("/wishlist", h.getWishlist)
		customer.POST("/wishlist", h.addToWishlist)
		customer.DELETE("/wishlist/:id", h.removeFromWishlist)
		customer.POST("/wishlist/:id/move-to-cart", h.moveToCart)

		customer.POST("/orders", h.placeOrder)
		customer.GET("/orders", h.listMyOrders)
		customer.GET("/orders/:id", h.getMyOrder)
		customer.POST("/orders/:id/cancel", h.cancelMyOrder)

		customer.POST("/products/:id/reviews", h.submitReview)

		customer.GET("/queries", h.listMyQueries)
		customer.POST("/queries", h.askQuery)

		customer.GET("/dashboard", h.customerDashboard)
	}

	admin := v1.Group("/admin", auth.RequireRole(auth.AdminArea))
	{
		admin.GET("/dashboard", h.adminDashboard)

		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.DELETE("/products/:id", h.deleteProduct)
		admin.POST("/products/:id/stock", h.adjustStock)

		admin.GET("/orders", h.listAllOrders)
		admin.PATCH("/orders/:id/status", h.updateOrderStatus)

		admin.GET("/users", h.listUsers)
		admin.GET("/users/:id", h.getUser)

		admin.GET("/queries", h.listQueries)
		admin.POST("/queries/:id/answer", h.answerQuery)
		admin.DELETE("/queries/:id", h.deleteQuery)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for _, rc := range h.readiness {
		if err := rc.Check(ctx); err != nil {
			ready = false
			checks[rc.Name] = err.Error()
			h.logger.Warn("Readiness check failed", zap.String("dependency", rc.Name), zap.Error(err))
			continue
		}
		checks[rc.Name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}
