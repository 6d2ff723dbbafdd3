// Package campaigns wires the campaigns domain into the HTTP router.
package campaigns

import (
	"outreach_backend/internal/campaigns/handler"
	apphttp "outreach_backend/internal/http"
)

// Module wires the campaigns domain into the HTTP router.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the campaigns HTTP module.
func NewModule(h *handler.Handler) *Module {
	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "campaigns" }

// RegisterRoutes mounts the campaign routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/campaigns")
	group.GET("", m.handler.List)
	group.POST("", m.handler.Create)
	group.GET("/:id", m.handler.Get)
	group.PUT("/:id", m.handler.Update)
	group.DELETE("/:id", m.handler.Delete)

	group.POST("/:id/start", m.handler.Start)
	group.POST("/:id/pause", m.handler.Pause)
	group.POST("/:id/stop", m.handler.Stop)

	group.GET("/:id/stats", m.handler.Stats)
	group.GET("/:id/leads", m.handler.Leads)
	group.GET("/:id/activities", m.handler.Activities)
	group.GET("/:id/steps", m.handler.Steps)
	group.PUT("/:id/steps", m.handler.ReplaceSteps)
	group.GET("/:id/execution-log", m.handler.ExecutionLog)
}
