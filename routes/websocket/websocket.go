package websocket

import (
	"github.com/R-Krishnananda/leaf-disease-predictor/controllers"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/store"

	"github.com/gin-gonic/gin"
)

// Register registers the streaming chat endpoint. Auth happens inside the
// handler via ?token= because browsers cannot set WS headers.
func Register(r *gin.Engine, st *store.ChatStore, llm controllers.Completer) {
	r.GET("/ws/chat", controllers.ChatWS(st, llm))
}
