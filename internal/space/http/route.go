package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers space-related routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/spaces")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)    // Browse spaces
		group.GET("/:id", h.Get) // Space details
	}

	// === Staff Routes ===
	staffGroup := group.Group("")
	staffGroup.Use(staffMiddleware)
	{
		staffGroup.POST("", h.Create)
		staffGroup.PATCH("/:id", h.Update)
		staffGroup.DELETE("/:id", h.Delete)
	}
}
