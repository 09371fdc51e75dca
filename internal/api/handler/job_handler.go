package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

const defaultPageSize = 20
const maxPageSize = 100

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	logger *slog.Logger
	store  *store.Store
}

// NewJobHandler creates a new JobHandler instance.
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}

// CreateJobRequest is the POST /api/v1/jobs body.
type CreateJobRequest struct {
	JobType      string          `json:"job_type" binding:"required"`
	Data         json.RawMessage `json:"data" binding:"required"`
	Priority     string          `json:"priority"`
	ScheduledFor *time.Time      `json:"scheduled_for"`
}

// CreateJob handles POST /api/v1/jobs. Directly enqueued jobs carry
// the manual provenance marker to distinguish them from trigger-created
// ones.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job := &domain.Job{
		ID:         uuid.New().String(),
		JobType:    domain.JobType(req.JobType),
		Data:       req.Data,
		Priority:   domain.JobPriority(req.Priority),
		Status:     domain.JobStatusPending,
		Provenance: "manual",
	}
	if req.ScheduledFor != nil {
		job.ScheduledFor = req.ScheduledFor
	}

	if err := h.store.EnqueueJob(c.Request.Context(), job); err != nil {
		respondError(c, h.logger, err)
		return
	}

	created, err := h.store.GetJob(c.Request.Context(), job.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetJob handles GET /api/v1/jobs/:job_id.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs with filtering and keyset
// pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	pageSize := defaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be a positive integer"})
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		pageSize = n
	}

	cursor, err := DecodeJobCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	filter := store.JobFilter{
		JobType:  domain.JobType(c.Query("job_type")),
		Status:   domain.JobStatus(c.Query("status")),
		Priority: domain.JobPriority(c.Query("priority")),
		PageSize: pageSize,
		Cursor:   cursor,
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var nextCursor string
	if len(jobs) > pageSize {
		jobs = jobs[:pageSize]
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&store.JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID})
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":        jobs,
		"next_cursor": nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel.
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	job, err := h.store.CancelJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
