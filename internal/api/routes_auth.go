package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/taskwell/taskwell/internal/auth"
	"github.com/taskwell/taskwell/internal/handlers"
	"github.com/taskwell/taskwell/internal/middleware"
)

func registerAuthRoutes(r *gin.Engine, handler *handlers.AuthHandler, jwt *iauth.JWTService) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", handler.Login)
		auth.POST("/register", handler.Register)
		auth.GET("/me", middleware.Auth(jwt), handler.Me)
	}
}
