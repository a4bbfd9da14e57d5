package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/taskwell/taskwell/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated user's id, empty for anonymous callers.
func currentUserID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Get(middleware.CtxUserIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
