package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskwell/taskwell/internal/services"
	"github.com/taskwell/taskwell/pkg/response"
)

// AttributeHandler exposes the per-project status and points catalogues.
type AttributeHandler struct {
	attributes *services.AttributeService
}

func NewAttributeHandler(attributes *services.AttributeService) *AttributeHandler {
	return &AttributeHandler{attributes: attributes}
}

type statusRequest struct {
	Name     string `json:"name" validate:"required,max=250"`
	IsClosed bool   `json:"is_closed"`
	Order    int    `json:"order"`
}

type pointsRequest struct {
	Name  string   `json:"name" validate:"required,max=250"`
	Value *float64 `json:"value"`
	Order int      `json:"order"`
}

type deletePointsRequest struct {
	MoveTo string `json:"move_to" validate:"required,uuid4"`
}

// POST /api/projects/:id/story-statuses
func (h *AttributeHandler) CreateStoryStatus(c *gin.Context) {
	var req statusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.attributes.CreateStoryStatus(requestContext(c), c.Param("id"), services.StatusInput{
		Name: req.Name, IsClosed: req.IsClosed, Order: req.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, status)
}

// PATCH /api/story-statuses/:id
func (h *AttributeHandler) UpdateStoryStatus(c *gin.Context) {
	var req statusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.attributes.UpdateStoryStatus(requestContext(c), c.Param("id"), services.StatusInput{
		Name: req.Name, IsClosed: req.IsClosed, Order: req.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// POST /api/projects/:id/task-statuses
func (h *AttributeHandler) CreateTaskStatus(c *gin.Context) {
	var req statusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.attributes.CreateTaskStatus(requestContext(c), c.Param("id"), services.StatusInput{
		Name: req.Name, IsClosed: req.IsClosed, Order: req.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, status)
}

// PATCH /api/task-statuses/:id
func (h *AttributeHandler) UpdateTaskStatus(c *gin.Context) {
	var req statusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.attributes.UpdateTaskStatus(requestContext(c), c.Param("id"), services.StatusInput{
		Name: req.Name, IsClosed: req.IsClosed, Order: req.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// POST /api/projects/:id/issue-statuses
func (h *AttributeHandler) CreateIssueStatus(c *gin.Context) {
	var req statusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.attributes.CreateIssueStatus(requestContext(c), c.Param("id"), services.StatusInput{
		Name: req.Name, IsClosed: req.IsClosed, Order: req.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, status)
}

// POST /api/projects/:id/points
func (h *AttributeHandler) CreatePoints(c *gin.Context) {
	var req pointsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	points, err := h.attributes.CreatePoints(requestContext(c), c.Param("id"), services.PointsInput{
		Name: req.Name, Value: req.Value, Order: req.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, points)
}

// PATCH /api/points/:id
func (h *AttributeHandler) UpdatePoints(c *gin.Context) {
	var req pointsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	points, err := h.attributes.UpdatePoints(requestContext(c), c.Param("id"), services.PointsInput{
		Name: req.Name, Value: req.Value, Order: req.Order,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, points)
}

// DELETE /api/points/:id
func (h *AttributeHandler) DeletePoints(c *gin.Context) {
	var req deletePointsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.attributes.DeletePoints(requestContext(c), c.Param("id"), req.MoveTo); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/projects/:id/ensure-role-points
func (h *AttributeHandler) EnsureRolePoints(c *gin.Context) {
	if err := h.attributes.EnsureRolePoints(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ok": true})
}
