package routes

import (
	"net/http"

	"backend/controllers"
	"backend/services"

	"github.com/gin-gonic/gin"
)

func SetupRouter(conv *services.ConversationService, logs *services.LogService, hub *services.RealtimeHub) *gin.Engine {
	r := gin.Default()

	chatCtl := controllers.NewChatController(conv)
	imageCtl := controllers.NewImageController(conv)
	logCtl := controllers.NewLogController(logs, hub)
	rtCtl := controllers.NewRealtimeController(hub)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/chat", chatCtl.PostChat)
	r.POST("/analyze", imageCtl.PostAnalyze)

	r.GET("/logs", logCtl.GetLogs)
	r.DELETE("/logs/:id", logCtl.DeleteLog)
	r.GET("/messages", logCtl.GetMessages)

	summary := r.Group("/summary")
	{
		summary.GET("/daily", logCtl.GetDailySummary)
		summary.GET("/weekly", logCtl.GetWeeklySummary)
	}

	r.GET("/ws", rtCtl.LogUpdatesWS)

	return r
}
