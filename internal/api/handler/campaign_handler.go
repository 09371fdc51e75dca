package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

// CampaignHandler handles campaign-related HTTP requests.
type CampaignHandler struct {
	logger *slog.Logger
	store  *store.Store
}

// NewCampaignHandler creates a new CampaignHandler instance.
func NewCampaignHandler(deps *Dependencies) *CampaignHandler {
	return &CampaignHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}

// CreateCampaignRequest is the POST /api/v1/campaigns body.
type CreateCampaignRequest struct {
	Name                      string              `json:"name" binding:"required"`
	ClientID                  *string             `json:"client_id"`
	Description               string              `json:"description"`
	SearchURL                 domain.SearchURLMap `json:"search_url"`
	EmailOutreach             bool                `json:"email_outreach"`
	LinkedInOutreach          bool                `json:"linkedin_outreach"`
	DailySendingLimitEmail    int                 `json:"daily_sending_limit_email"`
	DailySendingLimitLinkedIn int                 `json:"daily_sending_limit_linkedin"`
}

// CreateCampaign handles POST /api/v1/campaigns. Campaigns are born
// draft; a separate status update activates them.
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	for platform, ps := range req.SearchURL {
		if ps.SearchURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "search_url missing for platform " + platform})
			return
		}
		if ps.PageNumber < 1 {
			ps.PageNumber = 1
			req.SearchURL[platform] = ps
		}
	}

	campaign := &domain.Campaign{
		ID:                        uuid.New().String(),
		ClientID:                  req.ClientID,
		Name:                      req.Name,
		Description:               req.Description,
		Status:                    domain.CampaignStatusDraft,
		SearchURL:                 req.SearchURL,
		EmailOutreach:             req.EmailOutreach,
		LinkedInOutreach:          req.LinkedInOutreach,
		DailySendingLimitEmail:    req.DailySendingLimitEmail,
		DailySendingLimitLinkedIn: req.DailySendingLimitLinkedIn,
	}

	if err := h.store.CreateCampaign(c.Request.Context(), campaign); err != nil {
		respondError(c, h.logger, err)
		return
	}

	created, err := h.store.GetCampaign(c.Request.Context(), campaign.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetCampaign handles GET /api/v1/campaigns/:campaign_id.
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaign, err := h.store.GetCampaign(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// ListCampaigns handles GET /api/v1/campaigns.
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	campaigns, err := h.store.ListCampaigns(c.Request.Context(), domain.CampaignStatus(c.Query("status")), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// UpdateCampaignRequest is the PATCH /api/v1/campaigns/:campaign_id
// body.
type UpdateCampaignRequest struct {
	Name                      *string              `json:"name"`
	Description               *string              `json:"description"`
	SearchURL                 *domain.SearchURLMap `json:"search_url"`
	EmailOutreach             *bool                `json:"email_outreach"`
	LinkedInOutreach          *bool                `json:"linkedin_outreach"`
	DailySendingLimitEmail    *int                 `json:"daily_sending_limit_email"`
	DailySendingLimitLinkedIn *int                 `json:"daily_sending_limit_linkedin"`
}

// UpdateCampaign handles PATCH /api/v1/campaigns/:campaign_id.
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	campaign, err := h.store.UpdateCampaign(c.Request.Context(), c.Param("campaign_id"), store.CampaignUpdate{
		Name:                      req.Name,
		Description:               req.Description,
		SearchURL:                 req.SearchURL,
		EmailOutreach:             req.EmailOutreach,
		LinkedInOutreach:          req.LinkedInOutreach,
		DailySendingLimitEmail:    req.DailySendingLimitEmail,
		DailySendingLimitLinkedIn: req.DailySendingLimitLinkedIn,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// UpdateCampaignStatusRequest is the PUT
// /api/v1/campaigns/:campaign_id/status body.
type UpdateCampaignStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateCampaignStatus handles PUT /api/v1/campaigns/:campaign_id/status.
// Moving a campaign to active is what kicks off lead discovery.
func (h *CampaignHandler) UpdateCampaignStatus(c *gin.Context) {
	var req UpdateCampaignStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	status := domain.CampaignStatus(req.Status)
	switch status {
	case domain.CampaignStatusDraft, domain.CampaignStatusActive, domain.CampaignStatusPaused,
		domain.CampaignStatusCompleted, domain.CampaignStatusArchived:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown campaign status"})
		return
	}

	campaign, err := h.store.UpdateCampaignStatus(c.Request.Context(), c.Param("campaign_id"), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign handles DELETE /api/v1/campaigns/:campaign_id.
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	if err := h.store.DeleteCampaign(c.Request.Context(), c.Param("campaign_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
