package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/storesync/internal/database"
	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/metrics"
	"github.com/jonesrussell/storesync/internal/scheduler"
)

const defaultHistoryLimit = 20

// SchedulerInterface is the slice of the scheduler the handlers need.
type SchedulerInterface interface {
	TriggerCrawl(ctx context.Context, sourceID string, fullRescrape bool) error
	TriggerCrawlAll(ctx context.Context, tenantID string) (int, error)
	JobStatus(ctx context.Context, sourceID string) (*scheduler.Status, error)
	Metrics() metrics.Snapshot
}

// JobRunLister lists historical job runs for a source.
type JobRunLister interface {
	ListBySource(ctx context.Context, sourceID string, limit int) ([]*domain.JobRun, error)
}

// SourcesHandler exposes crawl trigger and status endpoints.
type SourcesHandler struct {
	scheduler SchedulerInterface
	runs      JobRunLister
}

// NewSourcesHandler creates a sources handler.
func NewSourcesHandler(sched SchedulerInterface, runs JobRunLister) *SourcesHandler {
	return &SourcesHandler{
		scheduler: sched,
		runs:      runs,
	}
}

// TriggerCrawl handles POST /api/v1/sources/:id/crawl
func (h *SourcesHandler) TriggerCrawl(c *gin.Context) {
	id := c.Param("id")
	if id == "" || id == "undefined" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid source ID",
		})
		return
	}

	full := c.Query("full") == "true"

	if err := h.scheduler.TriggerCrawl(c.Request.Context(), id, full); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Source already has a running crawl",
			})
		case errors.Is(err, database.ErrSourceNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Source not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to trigger crawl: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":   "Crawl triggered",
		"source_id": id,
		"full":      full,
	})
}

// TriggerTenantCrawl handles POST /api/v1/tenants/:id/crawl
func (h *SourcesHandler) TriggerTenantCrawl(c *gin.Context) {
	tenantID := c.Param("id")
	if tenantID == "" || tenantID == "undefined" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid tenant ID",
		})
		return
	}

	triggered, err := h.scheduler.TriggerCrawlAll(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to trigger crawls: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":   "Crawls triggered",
		"tenant_id": tenantID,
		"triggered": triggered,
	})
}

// GetStatus handles GET /api/v1/sources/:id/status
func (h *SourcesHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" || id == "undefined" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid source ID",
		})
		return
	}

	status, err := h.scheduler.JobStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve status",
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetMetrics handles GET /api/v1/scheduler/metrics
func (h *SourcesHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Metrics())
}

// ListRuns handles GET /api/v1/sources/:id/runs
func (h *SourcesHandler) ListRuns(c *gin.Context) {
	id := c.Param("id")
	if id == "" || id == "undefined" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid source ID",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}

	runs, err := h.runs.ListBySource(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve job runs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}
