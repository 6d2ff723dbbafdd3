package accounts

import (
	"outreach_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes account lifecycle endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates the accounts handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /accounts/linkedin.
func (h *Handler) List(c *gin.Context) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return
	}

	accounts, err := h.svc.List(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"accounts": accounts})
}

// Status handles GET /accounts/linkedin/:id/status.
func (h *Handler) Status(c *gin.Context) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid account id", nil)
		return
	}

	account, err := h.svc.Status(c.Request.Context(), id.TenantID(), accountID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, account)
}

// Disconnect handles POST /accounts/linkedin/:id/disconnect.
func (h *Handler) Disconnect(c *gin.Context) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid account id", nil)
		return
	}

	if httpkit.HandleError(c, h.svc.Disconnect(c.Request.Context(), id.TenantID(), accountID)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "disconnected"})
}

// Sync handles POST /accounts/linkedin/sync.
func (h *Handler) Sync(c *gin.Context) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return
	}

	accounts, err := h.svc.Sync(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"accounts": accounts})
}

// RegisterWebhook handles POST /accounts/linkedin/webhook.
func (h *Handler) RegisterWebhook(c *gin.Context) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return
	}

	registration, err := h.svc.RegisterWebhook(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, registration)
}

// ReceiveWebhook handles POST /internal/accounts/webhook. The gateway calls
// this path directly, so it carries no JWT; it is rate limited instead.
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, 400, "invalid webhook payload", nil)
		return
	}

	if httpkit.HandleError(c, h.svc.HandleWebhook(c.Request.Context(), payload)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}
