package chat

import (
	"github.com/R-Krishnananda/leaf-disease-predictor/controllers"
	"github.com/R-Krishnananda/leaf-disease-predictor/middleware"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/store"

	"github.com/gin-gonic/gin"
)

// Register registers chat routes (protected)
func Register(g *gin.RouterGroup, st *store.ChatStore, llm controllers.Completer) {
	// Rate limiting on the completion-backed endpoint only
	g.POST("/chat", middleware.RateLimit(), controllers.Chat(st, llm))
	g.GET("/chats", controllers.ListChats(st))
}
