package api

import (
	"github.com/gin-gonic/gin"

	"github.com/taskwell/taskwell/internal/handlers"
)

func registerMembershipRoutes(api *gin.RouterGroup, handler *handlers.MembershipHandler) {
	memberships := api.Group("/memberships")
	{
		memberships.POST("", handler.Create)
		memberships.PATCH("/:id", handler.Update)
		memberships.DELETE("/:id", handler.Delete)
		memberships.POST("/bulk-order", handler.BulkUpdateOrder)
	}
}
