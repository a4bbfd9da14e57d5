package api

import (
	"github.com/gin-gonic/gin"

	"github.com/taskwell/taskwell/internal/handlers"
)

func registerAttributeRoutes(api *gin.RouterGroup, handler *handlers.AttributeHandler) {
	api.PATCH("/story-statuses/:id", handler.UpdateStoryStatus)
	api.PATCH("/task-statuses/:id", handler.UpdateTaskStatus)

	points := api.Group("/points")
	{
		points.PATCH("/:id", handler.UpdatePoints)
		points.DELETE("/:id", handler.DeletePoints)
	}
}
