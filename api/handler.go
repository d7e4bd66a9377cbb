// Package api exposes the pipeline over HTTP.
package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/LdDl/crashtruth-go/pipeline"
	"github.com/LdDl/crashtruth-go/store"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxBodySize limits submitted detections
const maxBodySize = 64 << 20

// Handler serves pipeline triggers and artifacts
type Handler struct {
	dispatcher *pipeline.Dispatcher
	store      store.Store
	metrics    *pipeline.Metrics
	logger     logrus.FieldLogger
}

// NewHandler creates a new instance of Handler. Metrics may be nil
func NewHandler(dispatcher *pipeline.Dispatcher, s store.Store, metrics *pipeline.Metrics, logger logrus.FieldLogger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		store:      s,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterRoutes registers API routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/videos/:video/detections", h.SubmitDetections)
		api.GET("/videos/:video/tracks", h.artifact(store.KindTracks))
		api.GET("/videos/:video/findings", h.artifact(store.KindFindings))
		api.GET("/videos/:video/runs", h.ListRuns)
	}
	router.GET("/health", h.CheckHealth)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// SubmitResponse is returned by SubmitDetections
type SubmitResponse struct {
	Video   string            `json:"video"`
	Results []pipeline.Result `json:"results"`
}

// SubmitDetections stores a detections artifact and runs the stages depending on it
func (h *Handler) SubmitDetections(c *gin.Context) {
	video := c.Param("video")
	log := h.logger.WithField("video", video)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		log.WithError(err).Error("Can't read request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "can't read request body"})
		return
	}
	// Reject malformed input before it becomes a write-once artifact
	if _, err := pipeline.ParseDetections(bytes.NewReader(body)); err != nil {
		log.WithError(err).Warn("Rejected detections")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	results, err := h.dispatcher.Submit(c.Request.Context(), video, store.KindDetections, body)
	if err != nil {
		log.WithError(err).Error("Can't submit detections")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	for _, res := range results {
		if !res.Outcome.Succeeded() {
			status = statusFor(res.Err)
			break
		}
	}
	c.JSON(status, SubmitResponse{Video: video, Results: results})
}

func (h *Handler) artifact(kind store.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		video := c.Param("video")
		if err := store.ValidateRef(video); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body, err := h.store.Get(c.Request.Context(), video, kind)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				h.logger.WithError(err).WithField("video", video).Errorf("Can't read %s", kind)
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// RunView is a journal entry as rendered by the API
type RunView struct {
	RunID      string `json:"run_id"`
	Stage      string `json:"stage"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ListRuns returns run history of a video when the store keeps one
func (h *Handler) ListRuns(c *gin.Context) {
	journal, ok := h.store.(store.RunJournal)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "run journal is not available for this store"})
		return
	}
	video := c.Param("video")
	if err := store.ValidateRef(video); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runs, err := journal.ListRuns(c.Request.Context(), video)
	if err != nil {
		h.logger.WithError(err).WithField("video", video).Error("Can't list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "can't list runs"})
		return
	}
	views := make([]RunView, 0, len(runs))
	for _, r := range runs {
		views = append(views, RunView{
			RunID:      r.RunID,
			Stage:      r.Stage,
			Outcome:    r.Outcome,
			Detail:     r.Detail,
			DurationMs: r.Duration.Milliseconds(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"video": video, "runs": views})
}

// CheckHealth reports service liveness
func (h *Handler) CheckHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps pipeline and store errors to HTTP status codes
func statusFor(err error) int {
	var verr *pipeline.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
