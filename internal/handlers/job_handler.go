package handlers

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// JobView is a posting with the user's application state
type JobView struct {
	*models.Job
	Applied bool `json:"applied"`
}

// JobHandler handles job board requests
type JobHandler struct {
	jobs *services.JobService
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs *services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// RegisterJobRoutes registers job routes
func (h *JobHandler) RegisterJobRoutes(g *echo.Group) {
	g.GET("/jobs", h.GetJobs)
	g.POST("/jobs", h.CreateJob)
	g.POST("/jobs/:id/apply", h.Apply)
	g.DELETE("/jobs/:id", h.DeleteJob)
}

// GetJobs returns postings matching ?q, newest first
func (h *JobHandler) GetJobs(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.jobs.LoadJobs(ctx); err != nil {
		return listError(c, err, "jobs")
	}
	applied, err := h.jobs.LoadApplications(ctx)
	if err != nil {
		return listError(c, err, "jobs")
	}

	jobs := h.jobs.Jobs(c.QueryParam("q"))
	page, limit := pageParams(c, 20)
	paged, meta := paginate(jobs, page, limit)
	out := make([]JobView, len(paged))
	for i, j := range paged {
		out[i] = JobView{Job: j, Applied: applied[j.ID]}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"jobs": out},
		"meta":    meta,
	})
}

// CreateJob posts a job
func (h *JobHandler) CreateJob(c echo.Context) error {
	var req models.CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	res, err := h.jobs.PostJob(c.Request().Context(), req)
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusCreated, res.Value)
}

// Apply applies the user to a job
func (h *JobHandler) Apply(c echo.Context) error {
	res, err := h.jobs.Apply(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusCreated, res.Value)
}

// DeleteJob removes one of the user's postings
func (h *JobHandler) DeleteJob(c echo.Context) error {
	res, err := h.jobs.DeleteJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusNoContent, nil)
}
