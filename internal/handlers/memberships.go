package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskwell/taskwell/internal/services"
	"github.com/taskwell/taskwell/pkg/response"
)

// MembershipHandler exposes membership CRUD and ordering endpoints.
type MembershipHandler struct {
	memberships *services.MembershipService
}

func NewMembershipHandler(memberships *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{memberships: memberships}
}

type createMembershipRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid4"`
	UserID    string `json:"user_id" validate:"required,uuid4"`
	RoleID    string `json:"role_id" validate:"required,uuid4"`
	IsAdmin   bool   `json:"is_admin"`
}

type updateMembershipRequest struct {
	RoleID  *string `json:"role_id"`
	IsAdmin *bool   `json:"is_admin"`
}

type bulkOrderRequest struct {
	Orders []struct {
		ProjectID string `json:"project_id" validate:"required,uuid4"`
		Order     int    `json:"order"`
	} `json:"orders" validate:"required,dive"`
}

// POST /api/memberships
func (h *MembershipHandler) Create(c *gin.Context) {
	var req createMembershipRequest
	if !bindAndValidate(c, &req) {
		return
	}

	membership, err := h.memberships.Create(requestContext(c), services.CreateMembershipInput{
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		RoleID:    req.RoleID,
		IsAdmin:   req.IsAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, membership)
}

// PATCH /api/memberships/:id
func (h *MembershipHandler) Update(c *gin.Context) {
	var req updateMembershipRequest
	if !bindAndValidate(c, &req) {
		return
	}

	membership, err := h.memberships.Update(requestContext(c), c.Param("id"), services.UpdateMembershipInput{
		RoleID:  req.RoleID,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, membership)
}

// DELETE /api/memberships/:id
func (h *MembershipHandler) Delete(c *gin.Context) {
	if err := h.memberships.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/projects/:id/memberships
func (h *MembershipHandler) ListByProject(c *gin.Context) {
	memberships, err := h.memberships.ListByProject(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, memberships)
}

// POST /api/memberships/bulk-order
func (h *MembershipHandler) BulkUpdateOrder(c *gin.Context) {
	var req bulkOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}

	orders := make([]services.ProjectOrderInput, 0, len(req.Orders))
	for _, o := range req.Orders {
		orders = append(orders, services.ProjectOrderInput{ProjectID: o.ProjectID, Order: o.Order})
	}

	if err := h.memberships.BulkUpdateOrder(requestContext(c), currentUserID(c), orders); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
