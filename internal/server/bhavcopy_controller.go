package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bhavcopy-ingest/internal/batch"
	"bhavcopy-ingest/internal/bhavcopy"
	"bhavcopy-ingest/internal/jobs"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"

	"github.com/gin-gonic/gin"
)

// JobRunner starts and tracks background runs.
type JobRunner interface {
	Start(req jobs.Request) (*jobs.Job, error)
	Get(id string) (*jobs.Job, bool)
	Cancel(id string) (*jobs.Job, error)
}

// DateRunner fetches a single date in the foreground.
type DateRunner interface {
	RunDate(ctx context.Context, date time.Time) (types.FetchOutcome, error)
}

type BhavcopyController struct {
	jobs  JobRunner
	dates DateRunner
}

func NewBhavcopyController(jr JobRunner, dr DateRunner) *BhavcopyController {
	return &BhavcopyController{jobs: jr, dates: dr}
}

func (ctrl *BhavcopyController) RegisterRoutes(router *gin.RouterGroup) {
	g := router.Group("/bhavcopy")
	{
		g.GET("/yearly", ctrl.Yearly)
		g.GET("/fetch", ctrl.Fetch)
	}
}

type yearlyAccepted struct {
	JobID      string `json:"job_id"`
	Year       int    `json:"year"`
	StartFrom  string `json:"start_from,omitempty"`
	TotalDates int    `json:"total_dates"`
	Status     string `json:"status"`
}

// Yearly starts a background run over the business days of ?year=, optionally from ?start_from=.
func (ctrl *BhavcopyController) Yearly(c *gin.Context) {
	year, ok := parseYear(c.Query("year"))
	if !ok {
		badRequest(c, "year must be an integer")
		return
	}
	q := yearlyQuery{Year: year, StartFrom: c.Query("start_from")}
	if errs := yearlySchema.Validate(&q); len(errs) > 0 {
		badRequest(c, issues(errs))
		return
	}

	req := jobs.Request{Year: q.Year}
	if q.StartFrom != "" {
		from, err := bhavcopy.ParseDate(q.StartFrom)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		req.StartFrom = from
	}

	job, err := ctrl.jobs.Start(req)
	switch {
	case errors.Is(err, jobs.ErrNoDates):
		badRequest(c, "no business days from start_from to the end of the year")
		return
	case errors.Is(err, jobs.ErrShuttingDown):
		fail(c, http.StatusServiceUnavailable, "Server is shutting down", err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to start download", err)
		return
	}

	st := job.Status()
	respond(c, http.StatusAccepted, "Bhavcopy download started in the background", yearlyAccepted{
		JobID:      st.JobID,
		Year:       st.Year,
		StartFrom:  st.StartFrom,
		TotalDates: st.TotalDates,
		Status:     "processing",
	})
}

type fetchResult struct {
	Date           string `json:"date"`
	Status         string `json:"status"`
	RecordsCreated int    `json:"records_created"`
	RecordsUpdated int    `json:"records_updated"`
	RecordsErrored int    `json:"records_with_errors"`
	TotalRows      int    `json:"total_rows"`
	CoercedFields  int    `json:"coerced_fields"`
	Reason         string `json:"reason,omitempty"`
}

// Fetch downloads and stores the bhavcopy of ?dt= before responding.
func (ctrl *BhavcopyController) Fetch(c *gin.Context) {
	q := fetchQuery{Date: c.Query("dt")}
	if errs := fetchSchema.Validate(&q); len(errs) > 0 {
		badRequest(c, issues(errs))
		return
	}
	date, err := bhavcopy.ParseDate(q.Date)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	outcome, err := ctrl.dates.RunDate(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, batch.ErrSessionUnavailable) {
			fail(c, http.StatusBadGateway, "Failed to establish upstream session", err)
			return
		}
		fail(c, http.StatusServiceUnavailable, "Request cancelled", err)
		return
	}

	if outcome.Status == types.StatusFailed {
		logger.Warn(c.Request.Context(), "Single date fetch failed", "date", q.Date, "error", outcome.Error)
		c.JSON(http.StatusBadGateway, Response{
			Success: false,
			Message: "Failed to fetch bhavcopy",
			Error:   outcome.Error,
			Data:    gin.H{"date": q.Date, "status_code": outcome.StatusCode},
		})
		return
	}

	msg := "CSV processed successfully"
	if outcome.Status == types.StatusSkipped {
		msg = "No data for date"
	}
	respond(c, http.StatusOK, msg, fetchResult{
		Date:           q.Date,
		Status:         string(outcome.Status),
		RecordsCreated: outcome.Created,
		RecordsUpdated: outcome.Updated,
		RecordsErrored: outcome.Errored,
		TotalRows:      outcome.TotalRows,
		CoercedFields:  outcome.Coerced,
		Reason:         outcome.Reason,
	})
}
