package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers reservation routes. All of them require authentication;
// ownership and staff checks happen in the service.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/reservations")
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/busy", h.Busy)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.PATCH("/:id", h.Update)
		group.POST("/:id/confirm", h.Confirm)
		group.POST("/:id/cancel", h.Cancel)
		group.DELETE("/:id", h.Delete)
	}
}
