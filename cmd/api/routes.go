package main

import (
	"crm-softphone/internal/auth"
	"crm-softphone/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Vendor webhooks (public).
	// NOTE: protect with vendor signature validation in production.
	r.POST("/api/telephony/webhooks/call-events", h.CallEventsWebhook)

	// Token issuance for the softphone client.
	r.POST("/api/auth/login", h.Login)

	// protected API group
	api := r.Group("/api")
	api.Use(authMW)
	{
		// Identity echo for client debugging.
		api.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			wid, _ := auth.WorkspaceID(c.Request.Context())
			c.JSON(200, gin.H{"success": true, "data": gin.H{"user_id": uid, "workspace_id": wid}})
		})

		telephony := api.Group("/telephony")
		{
			telephony.GET("/auth/token", h.VoxToken)
			telephony.GET("/auth/config", h.VoxConfig)
		}

		calls := api.Group("/calls")
		{
			calls.POST("/initiate", h.InitiateCall)
			calls.POST("/connected", h.CallConnected)
			calls.POST("/ended", h.CallEnded)
			calls.GET("/history", h.CallHistory)

			calls.GET("/:call_id", h.GetCall)
			calls.DELETE("/:call_id", h.DeleteCall)
			calls.POST("/:call_id/end", h.EndCall)
			calls.POST("/:call_id/mute", h.SetMute)
			calls.POST("/:call_id/hold", h.SetHold)
			calls.POST("/:call_id/transfer", h.Transfer)
			calls.POST("/:call_id/notes", h.AddNote)
			calls.POST("/:call_id/recording", h.SetRecording)
		}

		api.GET("/analytics/summary", h.AnalyticsSummary)
	}
}
