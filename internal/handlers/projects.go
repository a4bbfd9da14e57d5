package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskwell/taskwell/internal/permissions"
	"github.com/taskwell/taskwell/internal/services"
	"github.com/taskwell/taskwell/pkg/errors"
	"github.com/taskwell/taskwell/pkg/metrics"
	"github.com/taskwell/taskwell/pkg/response"
)

// ProjectHandler exposes project lifecycle, membership-leave, statistics
// and the ownership transfer endpoints.
type ProjectHandler struct {
	projects    *services.ProjectService
	memberships *services.MembershipService
	transfers   *services.TransferService
	stats       *services.StatsService
	checker     *permissions.Checker
}

func NewProjectHandler(
	projects *services.ProjectService,
	memberships *services.MembershipService,
	transfers *services.TransferService,
	stats *services.StatsService,
	checker *permissions.Checker,
) *ProjectHandler {
	return &ProjectHandler{
		projects:    projects,
		memberships: memberships,
		transfers:   transfers,
		stats:       stats,
		checker:     checker,
	}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,max=250"`
	Description string `json:"description" validate:"max=2000"`
	IsPrivate   *bool  `json:"is_private"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPrivate   *bool   `json:"is_private"`
}

type transferStartRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

type transferTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	isPrivate := true
	if req.IsPrivate != nil {
		isPrivate = *req.IsPrivate
	}

	project, err := h.projects.Create(requestContext(c), services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     currentUserID(c),
		IsPrivate:   isPrivate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, project)
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	opts := services.ListProjectsOptions{
		MemberID:         currentUserID(c),
		OrderByUserOrder: c.Query("order_by") == "user_order",
	}

	projects, err := h.projects.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, projects)
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	ctx := requestContext(c)

	project, err := h.projects.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ok, err := h.checker.Check(ctx, currentUserID(c), project, permissions.ViewProject)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, errors.ErrForbidden)
		return
	}

	response.Success(c, http.StatusOK, project)
}

// GET /api/projects/by-slug/:slug
func (h *ProjectHandler) GetBySlug(c *gin.Context) {
	ctx := requestContext(c)

	project, err := h.projects.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ok, err := h.checker.Check(ctx, currentUserID(c), project, permissions.ViewProject)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, errors.ErrForbidden)
		return
	}

	response.Success(c, http.StatusOK, project)
}

// PATCH /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req updateProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	if !h.requireAdmin(c, c.Param("id")) {
		return
	}

	project, err := h.projects.Update(ctx, c.Param("id"), services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, project)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if !h.requireAdmin(c, c.Param("id")) {
		return
	}

	if err := h.projects.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/projects/:id/leave
func (h *ProjectHandler) Leave(c *gin.Context) {
	if err := h.memberships.Leave(requestContext(c), c.Param("id"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// GET /api/projects/:id/member-stats
func (h *ProjectHandler) MemberStats(c *gin.Context) {
	ctx := requestContext(c)

	project, err := h.projects.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ok, err := h.checker.Check(ctx, currentUserID(c), project, permissions.ViewProject)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, errors.ErrForbidden)
		return
	}

	stats, err := h.stats.MemberStats(ctx, project.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// POST /api/projects/:id/transfer/request
func (h *ProjectHandler) TransferRequest(c *gin.Context) {
	err := h.transfers.Request(requestContext(c), c.Param("id"), currentUserID(c))
	h.transferOutcome(c, "request", err)
}

// POST /api/projects/:id/transfer/start
func (h *ProjectHandler) TransferStart(c *gin.Context) {
	var req transferStartRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.transfers.Start(requestContext(c), c.Param("id"), currentUserID(c), req.UserID)
	h.transferOutcome(c, "start", err)
}

// POST /api/projects/:id/transfer/accept
func (h *ProjectHandler) TransferAccept(c *gin.Context) {
	var req transferTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.transfers.Accept(requestContext(c), c.Param("id"), currentUserID(c), req.Token)
	h.transferOutcome(c, "accept", err)
}

// POST /api/projects/:id/transfer/reject
func (h *ProjectHandler) TransferReject(c *gin.Context) {
	var req transferTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.transfers.Reject(requestContext(c), c.Param("id"), currentUserID(c), req.Token)
	h.transferOutcome(c, "reject", err)
}

func (h *ProjectHandler) transferOutcome(c *gin.Context, action string, err error) {
	if err != nil {
		metrics.TransferActions.WithLabelValues(action, "failure").Inc()
		response.Error(c, err)
		return
	}
	metrics.TransferActions.WithLabelValues(action, "success").Inc()
	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

// requireAdmin writes a 403 and returns false unless the caller administers
// the project.
func (h *ProjectHandler) requireAdmin(c *gin.Context, projectID string) bool {
	ctx := requestContext(c)

	project, err := h.projects.Get(ctx, projectID)
	if err != nil {
		response.Error(c, err)
		return false
	}

	isAdmin, err := h.checker.IsProjectAdmin(ctx, currentUserID(c), project)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if !isAdmin {
		response.Error(c, errors.ErrForbidden)
		return false
	}
	return true
}
