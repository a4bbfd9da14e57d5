package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/taskwell/taskwell/internal/auth"
	"github.com/taskwell/taskwell/internal/handlers"
	"github.com/taskwell/taskwell/internal/middleware"
)

// registerPublicProjectRoutes mounts the read endpoints that anonymous
// callers may reach on public projects. The permission checker decides per
// project; the middleware only extracts identity when a token is present.
func registerPublicProjectRoutes(r *gin.Engine, handler *handlers.ProjectHandler, jwt *iauth.JWTService) {
	public := r.Group("/api/projects")
	public.Use(middleware.OptionalAuth(jwt))
	{
		public.GET("/:id", handler.Get)
		public.GET("/:id/member-stats", handler.MemberStats)
		public.GET("/by-slug/:slug", handler.GetBySlug)
	}
}

func registerProjectRoutes(api *gin.RouterGroup, handler *handlers.ProjectHandler, memberships *handlers.MembershipHandler, attributes *handlers.AttributeHandler) {
	projects := api.Group("/projects")
	{
		projects.GET("", handler.List)
		projects.POST("", handler.Create)
		projects.PATCH("/:id", handler.Update)
		projects.DELETE("/:id", handler.Delete)

		projects.POST("/:id/leave", handler.Leave)
		projects.GET("/:id/memberships", memberships.ListByProject)

		projects.POST("/:id/transfer/request", handler.TransferRequest)
		projects.POST("/:id/transfer/start", handler.TransferStart)
		projects.POST("/:id/transfer/accept", handler.TransferAccept)
		projects.POST("/:id/transfer/reject", handler.TransferReject)

		projects.POST("/:id/story-statuses", attributes.CreateStoryStatus)
		projects.POST("/:id/task-statuses", attributes.CreateTaskStatus)
		projects.POST("/:id/issue-statuses", attributes.CreateIssueStatus)
		projects.POST("/:id/points", attributes.CreatePoints)
		projects.POST("/:id/ensure-role-points", attributes.EnsureRolePoints)
	}
}
