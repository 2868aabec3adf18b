package handlers

import (
	"hearthsync/internal/logger"
	"hearthsync/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// WebSocket state stream (HTTP upgrade) on the same port
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
	api := r.Group("/api/v1", h.bearerAuth)
	{
		h.registerFireplaceRoutes(api)
		h.registerLogRoutes(api)
		h.registerAccountRoutes(api)
	}
}

func (h *Handler) registerFireplaceRoutes(api *gin.RouterGroup) {
	fireplaces := api.Group("/fireplaces")
	{
		fireplaces.GET("", h.listFireplaces)
		fireplaces.GET("/:serial/state", h.getState)
		// Body example: {"command":"flame_height","value":3}
		fireplaces.POST("/:serial/command", h.sendCommand)
		fireplaces.POST("/:serial/on", h.turnOn)
		fireplaces.POST("/:serial/off", h.turnOff)
		fireplaces.POST("/:serial/refresh", h.refresh)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

func (h *Handler) registerAccountRoutes(api *gin.RouterGroup) {
	account := api.Group("/account")
	{
		account.POST("/login", h.cloudLogin)
		account.POST("/logout", h.cloudLogout)
		account.POST("/discover", h.discover)
		account.GET("/status", h.accountStatus)
	}
}
