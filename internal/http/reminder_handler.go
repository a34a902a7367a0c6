package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/service"
)

// ReminderHandler expone los recordatorios de las candidaturas del usuario.
type ReminderHandler struct {
	logger    *zap.Logger
	reminders *service.ReminderService
}

func NewReminderHandler(logger *zap.Logger, reminders *service.ReminderService) *ReminderHandler {
	return &ReminderHandler{logger: logger, reminders: reminders}
}

// Create maneja POST /reminders.
func (h *ReminderHandler) Create(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req service.CreateReminderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "create reminder", err)
		return
	}

	reminder, err := h.reminders.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, "create reminder", err)
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

// ListActive maneja GET /reminders/active.
func (h *ReminderHandler) ListActive(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	reminders, err := h.reminders.ListActive(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "list reminders", err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

// ListByJobTrack maneja GET /reminders/jobtrack/:jobTrackId.
func (h *ReminderHandler) ListByJobTrack(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	reminders, err := h.reminders.ListByJobTrack(c.Request.Context(), c.Param("jobTrackId"), userID)
	if err != nil {
		respondError(c, h.logger, "list reminders", err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

// Get maneja GET /reminders/:id.
func (h *ReminderHandler) Get(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	reminder, err := h.reminders.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "load reminder", err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// Update maneja PUT /reminders/:id.
func (h *ReminderHandler) Update(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req service.ReminderFields
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "update reminder", err)
		return
	}

	reminder, err := h.reminders.Update(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		respondError(c, h.logger, "update reminder", err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// MarkSent maneja PUT /reminders/:id/mark-sent.
func (h *ReminderHandler) MarkSent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	reminder, err := h.reminders.MarkSent(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "mark reminder sent", err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// Delete maneja DELETE /reminders/:id.
func (h *ReminderHandler) Delete(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	reminder, err := h.reminders.Delete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "delete reminder", err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// Stats maneja GET /reminders/stats (solo admin).
func (h *ReminderHandler) Stats(c *gin.Context) {
	stats, err := h.reminders.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "load reminder stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
