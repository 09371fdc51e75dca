package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadflowhq/leadflow/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes.
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "leadflow-api",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "leadflow-api",
		})
	})

	campaignHandler := handler.NewCampaignHandler(deps)
	leadHandler := handler.NewLeadHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	messageHandler := handler.NewMessageHandler(deps)

	v1 := r.Group("/api/v1")
	{
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("", campaignHandler.ListCampaigns)
			campaigns.GET("/:campaign_id", campaignHandler.GetCampaign)
			campaigns.PATCH("/:campaign_id", campaignHandler.UpdateCampaign)
			campaigns.PUT("/:campaign_id/status", campaignHandler.UpdateCampaignStatus)
			campaigns.DELETE("/:campaign_id", campaignHandler.DeleteCampaign)

			campaigns.POST("/:campaign_id/leads", leadHandler.CreateLeads)
			campaigns.GET("/:campaign_id/leads", leadHandler.ListLeads)
			campaigns.GET("/:campaign_id/messages", messageHandler.ListMessages)
		}

		leads := v1.Group("/leads")
		{
			leads.GET("/:lead_id", leadHandler.GetLead)
			leads.PUT("/:lead_id/status", leadHandler.UpdateLeadStatus)
			leads.DELETE("/:lead_id", leadHandler.DeleteLead)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		messages := v1.Group("/messages")
		{
			messages.GET("/:message_id", messageHandler.GetMessage)
			messages.PUT("/:message_id/status", messageHandler.UpdateMessageStatus)
		}
	}

	return r
}
