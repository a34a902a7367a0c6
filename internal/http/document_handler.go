package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/service"
)

// DocumentHandler sube, descarga y borra el CV (cv) y la carta (lm) de una candidatura.
type DocumentHandler struct {
	logger    *zap.Logger
	documents *service.DocumentService
}

func NewDocumentHandler(logger *zap.Logger, documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{logger: logger, documents: documents}
}

// Upload maneja POST /jobtracks/:id/{cv,lm} con el archivo en el campo "file".
func (h *DocumentHandler) Upload(kind domain.DocumentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustUserID(c)
		if !ok {
			return
		}
		header, err := c.FormFile("file")
		if err != nil {
			badRequest(c, h.logger, "upload document", err)
			return
		}
		if header.Size > service.MaxDocumentSize {
			respondError(c, h.logger, "upload document", service.ErrInvalidDocument)
			return
		}

		file, err := header.Open()
		if err != nil {
			respondError(c, h.logger, "upload document", err)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, service.MaxDocumentSize+1))
		if err != nil {
			respondError(c, h.logger, "upload document", err)
			return
		}

		name, err := h.documents.Upload(
			c.Request.Context(),
			c.Param("id"),
			userID,
			kind,
			header.Filename,
			header.Header.Get("Content-Type"),
			data,
		)
		if err != nil {
			respondError(c, h.logger, "upload document", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"fileName": name})
	}
}

// Download maneja GET /jobtracks/:id/{cv,lm}.
func (h *DocumentHandler) Download(kind domain.DocumentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustUserID(c)
		if !ok {
			return
		}
		doc, err := h.documents.Download(c.Request.Context(), c.Param("id"), userID, kind)
		if err != nil {
			respondError(c, h.logger, "download document", err)
			return
		}
		c.Header("Content-Type", doc.ContentType)
		c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(doc.FileName))
		c.Data(http.StatusOK, doc.ContentType, doc.Data)
	}
}

// Delete maneja DELETE /jobtracks/:id/{cv,lm}.
func (h *DocumentHandler) Delete(kind domain.DocumentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mustUserID(c)
		if !ok {
			return
		}
		if err := h.documents.Delete(c.Request.Context(), c.Param("id"), userID, kind); err != nil {
			respondError(c, h.logger, "delete document", err)
			return
		}
		c.JSON(http.StatusOK, service.MessageResponse{Message: "document deleted"})
	}
}
