package documents

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/extract"
	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/telemetry"
)

// multipart framing overhead allowed on top of the file limit.
const formOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/:id", h.delete)
	rg.GET("/documents/:id/ai/:kind", h.aiField)
	rg.GET("/documents/:id/file", h.file)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit := h.Svc.maxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	fileHeader, err := formFile(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", tooLargeMessage(limit), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size > limit {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", tooLargeMessage(limit), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	doc, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", tooLargeMessage(limit), nil)
		case errors.Is(err, ErrNotPDF):
			respond.Error(c, http.StatusBadRequest, "validation_error", "only PDF files are accepted", nil)
		case errors.Is(err, extract.ErrExtraction):
			respond.Error(c, http.StatusBadRequest, "extraction_failed", "could not extract text from PDF", gin.H{"reason": err.Error()})
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload document", nil)
		}
		return
	}

	c.Set("documentId", doc.ID)
	respond.Created(c, toUploadResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	items, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		}
		return
	}

	respond.OK(c, toListResponse(items))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set("documentId", id)

	doc, err := h.Svc.Owned(c.Request.Context(), userID, id)
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, toDetailResponse(doc))
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set("documentId", id)

	if err := h.Svc.Delete(c.Request.Context(), userID, id); err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, gin.H{"ok": true})
}

func (h *Handler) aiField(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set("documentId", id)
	c.Set("aiKind", c.Param("kind"))

	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		WriteError(c, err)
		return
	}
	value, err := h.Svc.AIField(c.Request.Context(), userID, id, kind)
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, gin.H{string(kind): value})
}

func (h *Handler) file(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set("documentId", id)

	doc, rc, err := h.Svc.OpenFile(c.Request.Context(), userID, id)
	if err != nil {
		WriteError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.OriginalFileName))
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.ContentType, rc, nil)
}

// WriteError maps document errors to the shared error envelope.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "document belongs to another user", nil)
	case errors.Is(err, ErrInvalidKind):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), gin.H{"allowed": AIKinds})
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		telemetry.Error("documents.request.failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"path":       c.Request.URL.Path,
			"err":        err,
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}

// formFile accepts the "pdf" field as an alias for "file".
func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	fileHeader, err := c.FormFile("file")
	if err == nil {
		return fileHeader, nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return nil, err
	}
	if alt, altErr := c.FormFile("pdf"); altErr == nil {
		return alt, nil
	}
	return nil, err
}

func tooLargeMessage(limit int64) string {
	return "file exceeds the " + strconv.FormatInt(limit>>20, 10) + "MB upload limit"
}
