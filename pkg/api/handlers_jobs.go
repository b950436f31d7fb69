package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slurmnode/pkg/metrics"
	"slurmnode/pkg/models"
	"slurmnode/pkg/storage"
)

// SubmitJobRequest is the payload for submitting a job.
type SubmitJobRequest struct {
	models.JobSpec

	// TimeoutSeconds bounds the whole execution. Zero falls back to the
	// server default.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SubmitJobResponse acknowledges a queued submission.
type SubmitJobResponse struct {
	ID       uuid.UUID               `json:"id"`
	Status   models.SubmissionStatus `json:"status"`
	QueuedAt time.Time               `json:"queued_at"`
}

// submitJob handles POST /api/v1/jobs
func (s *Server) submitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.validator.ValidateExecutable(req.Executable); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.ValidateEnvironment(req.Environment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec := req.JobSpec
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TimeoutSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeout_seconds must not be negative"})
		return
	}
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = s.defaultTimeout
	}

	sub := &models.Submission{
		ID:       uuid.New(),
		Spec:     spec,
		Timeout:  timeout,
		QueuedAt: time.Now().UTC(),
	}

	if err := s.statusStore.SetStatus(c.Request.Context(), sub.ID, models.SubmissionPending); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record submission: " + err.Error()})
		return
	}
	if err := s.queue.Push(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue submission: " + err.Error()})
		return
	}

	metrics.SubmissionsTotal.WithLabelValues(string(spec.Backend)).Inc()

	c.JSON(http.StatusAccepted, SubmitJobResponse{
		ID:       sub.ID,
		Status:   models.SubmissionPending,
		QueuedAt: sub.QueuedAt,
	})
}

// getJob handles GET /api/v1/jobs/:id
func (s *Server) getJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission ID"})
		return
	}

	result, err := s.statusStore.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load submission: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// getJobLogs handles GET /api/v1/jobs/:id/logs
func (s *Server) getJobLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission ID"})
		return
	}

	result, err := s.statusStore.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load submission: " + err.Error()})
		return
	}

	if result.LogRef == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no logs archived for this submission"})
		return
	}

	logs, err := s.logStore.Retrieve(c.Request.Context(), result.LogRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "logs not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve logs: " + err.Error()})
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", logs)
}
