package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/service"
)

// JobTrackHandler expone el CRUD de candidaturas del usuario autenticado.
type JobTrackHandler struct {
	logger *zap.Logger
	tracks *service.JobTrackService
}

func NewJobTrackHandler(logger *zap.Logger, tracks *service.JobTrackService) *JobTrackHandler {
	return &JobTrackHandler{logger: logger, tracks: tracks}
}

// jobTrackWithReminderRequest es el cuerpo plano de los endpoints "with-reminder".
type jobTrackWithReminderRequest struct {
	service.JobTrackFields
	service.ReminderFields
}

func (r jobTrackWithReminderRequest) input() service.JobTrackWithReminderInput {
	return service.JobTrackWithReminderInput{JobTrack: r.JobTrackFields, Reminder: r.ReminderFields}
}

func upsertRequested(c *gin.Context) bool {
	v := c.Query("upsert")
	return v == "true" || v == "1"
}

// Create maneja POST /jobtracks.
func (h *JobTrackHandler) Create(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req service.JobTrackFields
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "create job track", err)
		return
	}

	track, err := h.tracks.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, "create job track", err)
		return
	}
	c.JSON(http.StatusCreated, track)
}

// CreateWithReminder maneja POST /jobtracks/with-reminder.
func (h *JobTrackHandler) CreateWithReminder(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req jobTrackWithReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "create job track", err)
		return
	}

	track, err := h.tracks.CreateWithReminder(c.Request.Context(), userID, req.input())
	if err != nil {
		respondError(c, h.logger, "create job track", err)
		return
	}
	c.JSON(http.StatusCreated, track)
}

// List maneja GET /jobtracks.
func (h *JobTrackHandler) List(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	tracks, err := h.tracks.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "list job tracks", err)
		return
	}
	c.JSON(http.StatusOK, tracks)
}

// ListByStatus maneja GET /jobtracks/status/:status.
func (h *JobTrackHandler) ListByStatus(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	tracks, err := h.tracks.ListByStatus(c.Request.Context(), userID, domain.JobStatus(c.Param("status")))
	if err != nil {
		respondError(c, h.logger, "list job tracks", err)
		return
	}
	c.JSON(http.StatusOK, tracks)
}

// Get maneja GET /jobtracks/:id.
func (h *JobTrackHandler) Get(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	track, err := h.tracks.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "load job track", err)
		return
	}
	c.JSON(http.StatusOK, track)
}

// Update maneja PUT /jobtracks/:id.
func (h *JobTrackHandler) Update(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req service.JobTrackFields
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "update job track", err)
		return
	}

	track, err := h.tracks.Update(c.Request.Context(), c.Param("id"), userID, req, upsertRequested(c))
	if err != nil {
		respondError(c, h.logger, "update job track", err)
		return
	}
	c.JSON(http.StatusOK, track)
}

// UpdateWithReminder maneja PUT /jobtracks/:id/with-reminder.
func (h *JobTrackHandler) UpdateWithReminder(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req jobTrackWithReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "update job track", err)
		return
	}

	track, err := h.tracks.UpdateWithReminder(c.Request.Context(), c.Param("id"), userID, req.input(), upsertRequested(c))
	if err != nil {
		respondError(c, h.logger, "update job track", err)
		return
	}
	c.JSON(http.StatusOK, track)
}

// Delete maneja DELETE /jobtracks/:id.
func (h *JobTrackHandler) Delete(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	track, err := h.tracks.Delete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "delete job track", err)
		return
	}
	c.JSON(http.StatusOK, track)
}
