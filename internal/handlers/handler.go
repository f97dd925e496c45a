package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/metrics"
	"fleet_dashboard/internal/service"
	"fleet_dashboard/internal/stream"
)

// Streamer delivers map commands to websocket clients.
type Streamer interface {
	Subscribe() (<-chan stream.Envelope, func())
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	stream   Streamer
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. stream may be
// nil, in which case /ws carries dashboard views only.
func NewHandler(services *service.Service, stream Streamer, log *logger.Logger) *Handler {
	return &Handler{services: services, stream: stream, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.GET("/vehicles", h.listVehicles)
		h.registerSelectionRoutes(api)
		h.registerDashboardRoutes(api)
		api.POST("/reports/failure", h.sendFailureReport)
		api.GET("/events", h.listEvents)
	}
}

func (h *Handler) registerSelectionRoutes(api *gin.RouterGroup) {
	sel := api.Group("/selection")
	{
		sel.GET("", h.getSelection)
		// Body example: {"entity_id":"KA01AB1234","start":"2024-03-01","end":"2024-03-31"}
		sel.PUT("", h.putSelection)
		sel.PUT("/entity", h.putEntity)
		sel.PUT("/date-range", h.putDateRange)
	}
}

func (h *Handler) registerDashboardRoutes(api *gin.RouterGroup) {
	dash := api.Group("/dashboard")
	{
		dash.GET("", h.getDashboard)
		dash.GET("/:panel", h.getPanel)
	}
}
