package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

// LeadHandler handles lead-related HTTP requests.
type LeadHandler struct {
	logger *slog.Logger
	store  *store.Store
}

// NewLeadHandler creates a new LeadHandler instance.
func NewLeadHandler(deps *Dependencies) *LeadHandler {
	return &LeadHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}

// CreateLeadsRequest is the POST /api/v1/campaigns/:campaign_id/leads
// body. Inserting leads runs the trigger rules, so placeholder emails
// get enrichment jobs immediately.
type CreateLeadsRequest struct {
	Leads []struct {
		FirstName   string          `json:"first_name"`
		LastName    string          `json:"last_name"`
		Email       string          `json:"email"`
		Company     string          `json:"company"`
		Title       string          `json:"title"`
		FullContext json.RawMessage `json:"full_context"`
	} `json:"leads" binding:"required"`
}

// CreateLeads handles POST /api/v1/campaigns/:campaign_id/leads.
func (h *LeadHandler) CreateLeads(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	if _, err := h.store.GetCampaign(c.Request.Context(), campaignID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req CreateLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Leads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "leads must not be empty"})
		return
	}

	leads := make([]*domain.Lead, 0, len(req.Leads))
	for _, l := range req.Leads {
		leads = append(leads, &domain.Lead{
			CampaignID:  campaignID,
			FirstName:   l.FirstName,
			LastName:    l.LastName,
			Email:       l.Email,
			Company:     l.Company,
			Title:       l.Title,
			Status:      domain.LeadStatusNew,
			FullContext: l.FullContext,
		})
	}

	if err := h.store.CreateLeads(c.Request.Context(), campaignID, leads); err != nil {
		respondError(c, h.logger, err)
		return
	}

	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	c.JSON(http.StatusCreated, gin.H{
		"created":  len(leads),
		"lead_ids": ids,
	})
}

// GetLead handles GET /api/v1/leads/:lead_id.
func (h *LeadHandler) GetLead(c *gin.Context) {
	lead, err := h.store.GetLead(c.Request.Context(), c.Param("lead_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// ListLeads handles GET /api/v1/campaigns/:campaign_id/leads.
func (h *LeadHandler) ListLeads(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	leads, err := h.store.ListLeads(c.Request.Context(),
		c.Param("campaign_id"), domain.LeadStatus(c.Query("status")), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

// UpdateLeadStatusRequest is the PUT /api/v1/leads/:lead_id/status
// body.
type UpdateLeadStatusRequest struct {
	Status string          `json:"status" binding:"required"`
	Email  *string         `json:"email"`
	Full   json.RawMessage `json:"full_context"`
}

// UpdateLeadStatus handles PUT /api/v1/leads/:lead_id/status. Status
// changes run the trigger rules: marking a lead researched is what
// creates its outreach job.
func (h *LeadHandler) UpdateLeadStatus(c *gin.Context) {
	var req UpdateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	status := domain.LeadStatus(req.Status)
	switch status {
	case domain.LeadStatusNew, domain.LeadStatusEnriching, domain.LeadStatusEnriched,
		domain.LeadStatusEnrichmentFailed, domain.LeadStatusResearching, domain.LeadStatusResearched,
		domain.LeadStatusContacted, domain.LeadStatusReplied, domain.LeadStatusUnsubscribed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown lead status"})
		return
	}

	lead, err := h.store.UpdateLeadStatus(c.Request.Context(), c.Param("lead_id"), status, store.LeadUpdate{
		Email:       req.Email,
		FullContext: req.Full,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// DeleteLead handles DELETE /api/v1/leads/:lead_id. Deleting can drop
// an active campaign below its supply threshold, which re-triggers
// discovery.
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	if err := h.store.DeleteLead(c.Request.Context(), c.Param("lead_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
