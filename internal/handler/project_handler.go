package handler

import (
	"net/http"

	"installpro/internal/middleware"
	"installpro/internal/service"
	"installpro/pkg/pagination"
	"installpro/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService service.ProjectService
}

func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// RegisterRoutes expects router to carry the Authenticate middleware.
func (h *ProjectHandler) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/api/projects")
	{
		projects.POST("", middleware.RequireRole(projectCreators...), h.CreateProject)
		projects.GET("", h.ListProjects)
		projects.GET("/stats", middleware.RequireRole(backOfficeRoles...), h.GetStats)
		projects.GET("/:id", h.GetProject)
		projects.PATCH("/:id", h.UpdateProject)
		projects.DELETE("/:id", middleware.RequireRole(elevatedRoles...), h.DeleteProject)
		projects.GET("/:id/history", h.GetHistory)
	}
}

// CreateProject creates a project and submits it for approval
// @Summary      Create project
// @Description  Creates a project with its line items. New projects start in pending_approval unless created as draft.
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProjectRequest  true  "Project"
// @Success      201      {object}  response.Response{data=model.Project}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, project))
}

// ListProjects returns the projects visible to the caller
// @Summary      List projects
// @Description  Vendors see their own projects, installers the ones assigned to them, back office sees all.
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        search  query     string  false  "Search by name, client or invoice number"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page[model.Project]}
// @Failure      400     {object}  response.Response
// @Router       /api/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	filter := service.ProjectListFilter{Status: c.Query("status"), Search: c.Query("search")}
	page, err := h.projectService.ListProjects(c.Request.Context(), actor(c), filter, pagination.Parse(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}

// GetProject returns a project with its items and history
// @Summary      Get project
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  response.Response{data=model.Project}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	project, err := h.projectService.GetProject(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, project))
}

// UpdateProject applies a partial update
// @Summary      Update project
// @Description  Applies a sparse patch: status transitions, installer assignment and price negotiation. Omitted fields are kept, null clears optional fields. Send version to guard against concurrent edits.
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                   true  "Project ID"
// @Param        payload  body      service.ProjectPatch  true  "Patch"
// @Success      200      {object}  response.Response{data=model.Project}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/projects/{id} [patch]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var patch service.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.projectService.ApplyUpdate(c.Request.Context(), actor(c), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, project))
}

// DeleteProject soft deletes a project
// @Summary      Delete project
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.projectService.DeleteProject(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Proyecto eliminado"}))
}

// GetHistory returns the project's ledger, oldest first
// @Summary      Project history
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  response.Response{data=[]model.ProjectHistory}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/projects/{id}/history [get]
func (h *ProjectHandler) GetHistory(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	history, err := h.projectService.GetHistory(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// GetStats returns project counts per status
// @Summary      Project statistics
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.ProjectStats}
// @Router       /api/projects/stats [get]
func (h *ProjectHandler) GetStats(c *gin.Context) {
	stats, err := h.projectService.GetStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
