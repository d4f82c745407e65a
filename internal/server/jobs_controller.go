package server

import (
	"errors"
	"net/http"

	"bhavcopy-ingest/internal/jobs"

	"github.com/gin-gonic/gin"
)

type JobsController struct {
	jobs JobRunner
}

func NewJobsController(jr JobRunner) *JobsController {
	return &JobsController{jobs: jr}
}

func (ctrl *JobsController) RegisterRoutes(router *gin.RouterGroup) {
	g := router.Group("/jobs")
	{
		g.GET("/:id", ctrl.Get)
		g.DELETE("/:id", ctrl.Cancel)
	}
}

func (ctrl *JobsController) Get(c *gin.Context) {
	job, ok := ctrl.jobs.Get(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "Job not found", jobs.ErrNotFound)
		return
	}
	respond(c, http.StatusOK, "Job status", job.Status())
}

func (ctrl *JobsController) Cancel(c *gin.Context) {
	job, err := ctrl.jobs.Cancel(c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		fail(c, http.StatusNotFound, "Job not found", err)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to cancel job", err)
		return
	}
	respond(c, http.StatusAccepted, "Cancellation requested", job.Status())
}

type HealthController struct{}

func (HealthController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", health)
	router.HEAD("/health", health)
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Message: "ok"})
}
