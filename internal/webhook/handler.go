package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/instadmio/instadm-appointment-setter/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles webhook HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleStatus is the liveness probe for a tenant's webhook URL.
// GET /webhook/:tenantId
func (h *Handler) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "active", "message": "InstaDM Webhook is online"})
}

// HandleEvent accepts a ManyChat event.
// POST /webhook/:tenantId
func (h *Handler) HandleEvent(c *gin.Context) {
	tenantID, ok := c.MustGet(tenantIDCtxKey).(uuid.UUID)
	if !ok {
		httpkit.HandleError(c, invalidPayload(tenantParam))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httpkit.HandleError(c, invalidPayload())
		return
	}

	result, err := h.service.HandleEvent(c.Request.Context(), tenantID, body)
	if errors.Is(err, ErrReplyGenerationFailed) {
		c.JSON(http.StatusInternalServerError, Result{Status: StatusError, Error: err.Error()})
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusOK, result)
}
