// Package handler exposes the campaigns HTTP API.
package handler

import (
	"context"
	"strconv"

	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/campaigns/service"
	"outreach_backend/internal/campaigns/transport"
	"outreach_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles campaign endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler creates the campaigns handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /campaigns.
func (h *Handler) List(c *gin.Context) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return
	}

	params := repository.ListParams{
		Search: c.Query("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	if status := c.Query("status"); status != "" {
		params.Status = &status
	}

	result, err := h.svc.List(c.Request.Context(), id.TenantID(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Get handles GET /campaigns/:id.
func (h *Handler) Get(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	campaign, err := h.svc.Get(c.Request.Context(), campaignID, id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaign)
}

// Create handles POST /campaigns.
func (h *Handler) Create(c *gin.Context) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return
	}

	var req transport.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid campaign payload", err.Error())
		return
	}

	campaign, err := h.svc.Create(c.Request.Context(), id.TenantID(), id.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, 201, campaign)
}

// Update handles PUT /campaigns/:id.
func (h *Handler) Update(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	var req transport.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid campaign payload", err.Error())
		return
	}

	campaign, err := h.svc.Update(c.Request.Context(), campaignID, id.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaign)
}

// Delete handles DELETE /campaigns/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), campaignID, id.TenantID())) {
		return
	}
	httpkit.OK(c, gin.H{"status": "deleted"})
}

// Start handles POST /campaigns/:id/start.
func (h *Handler) Start(c *gin.Context) {
	h.control(c, h.svc.Start)
}

// Pause handles POST /campaigns/:id/pause.
func (h *Handler) Pause(c *gin.Context) {
	h.control(c, h.svc.Pause)
}

// Stop handles POST /campaigns/:id/stop.
func (h *Handler) Stop(c *gin.Context) {
	h.control(c, h.svc.Stop)
}

func (h *Handler) control(c *gin.Context, op func(ctx context.Context, id, tenantID uuid.UUID) (*transport.CampaignResponse, error)) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	campaign, err := op(c.Request.Context(), campaignID, id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaign)
}

// Stats handles GET /campaigns/:id/stats.
func (h *Handler) Stats(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), campaignID, id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

// Leads handles GET /campaigns/:id/leads.
func (h *Handler) Leads(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	result, err := h.svc.Leads(c.Request.Context(), campaignID, id.TenantID(),
		queryInt(c, "page", 1), queryInt(c, "limit", 50))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Activities handles GET /campaigns/:id/activities.
func (h *Handler) Activities(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	activities, err := h.svc.Activities(c.Request.Context(), campaignID, id.TenantID(),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"activities": activities})
}

// Steps handles GET /campaigns/:id/steps.
func (h *Handler) Steps(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	steps, err := h.svc.Steps(c.Request.Context(), campaignID, id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"steps": steps})
}

// ReplaceSteps handles PUT /campaigns/:id/steps.
func (h *Handler) ReplaceSteps(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	var req transport.ReplaceStepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid steps payload", err.Error())
		return
	}

	if httpkit.HandleError(c, h.svc.ReplaceSteps(c.Request.Context(), campaignID, id.TenantID(), req)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// ExecutionLog handles GET /campaigns/:id/execution-log.
func (h *Handler) ExecutionLog(c *gin.Context) {
	id, campaignID, ok := h.tenantAndCampaign(c)
	if !ok {
		return
	}

	entries, err := h.svc.ExecutionLog(c.Request.Context(), campaignID, id.TenantID(), queryInt(c, "limit", 30))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"log": entries})
}

func (h *Handler) tenantAndCampaign(c *gin.Context) (httpkit.Identity, uuid.UUID, bool) {
	id := httpkit.MustGetTenantIdentity(c)
	if id == nil {
		return nil, uuid.Nil, false
	}
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid campaign id", nil)
		return nil, uuid.Nil, false
	}
	return id, campaignID, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
