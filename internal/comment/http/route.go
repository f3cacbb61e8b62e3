package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/comments")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.POST("", h.Create)
	}

	// === Moderation Routes (Staff Only) ===
	staffGroup := group.Group("")
	staffGroup.Use(staffMiddleware)
	{
		staffGroup.PATCH("/:id/approve", h.Approve)
		staffGroup.PATCH("/:id/annul", h.Annul)
	}
}
