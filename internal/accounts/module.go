package accounts

import (
	apphttp "outreach_backend/internal/http"
)

// Module wires the accounts domain into the HTTP router.
type Module struct {
	handler *Handler
}

// NewModule creates the accounts HTTP module.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "accounts" }

// RegisterRoutes mounts the account lifecycle routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/accounts/linkedin")
	group.GET("", m.handler.List)
	group.GET("/:id/status", m.handler.Status)
	group.POST("/:id/disconnect", m.handler.Disconnect)
	group.POST("/sync", m.handler.Sync)
	group.POST("/webhook", m.handler.RegisterWebhook)

	// Gateway callback: no JWT, rate limited by the internal group.
	ctx.Internal.POST("/accounts/webhook", m.handler.ReceiveWebhook)
}
