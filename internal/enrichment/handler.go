package enrichment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
)

// Handler wires the on-demand AI routes.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches AI routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ai/qa", h.ask)
	rg.POST("/ai/:kind", h.ensure)
}

type ensureRequest struct {
	DocumentID string `json:"documentId"`
}

type askRequest struct {
	DocumentID string `json:"documentId"`
	Question   string `json:"question"`
}

type askResponse struct {
	Answer     string   `json:"answer"`
	Confidence *float64 `json:"confidence"`
}

func (h *Handler) ensure(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set("aiKind", c.Param("kind"))

	kind, err := documents.ParseKind(c.Param("kind"))
	if err != nil {
		documents.WriteError(c, err)
		return
	}

	var req ensureRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DocumentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentId is required", nil)
		return
	}
	c.Set("documentId", req.DocumentID)

	value, err := h.Svc.Ensure(c.Request.Context(), userID, req.DocumentID, kind)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{string(kind): value})
}

func (h *Handler) ask(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Set("aiKind", "qa")

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DocumentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentId is required", nil)
		return
	}
	c.Set("documentId", req.DocumentID)

	entry, err := h.Svc.AskQuestion(c.Request.Context(), userID, req.DocumentID, req.Question)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, askResponse{Answer: entry.Answer, Confidence: entry.Confidence})
}

func writeError(c *gin.Context, err error) {
	var enrichErr *EnrichmentError
	switch {
	case errors.Is(err, ErrEmptyQuestion):
		respond.Error(c, http.StatusBadRequest, "validation_error", "question is required", nil)
	case errors.As(err, &enrichErr):
		respond.Error(c, http.StatusBadGateway, "enrichment_failed", "AI "+enrichErr.Kind+" generation failed", nil)
	default:
		documents.WriteError(c, err)
	}
}
