package routes

import (
	"net/http"

	"github.com/R-Krishnananda/leaf-disease-predictor/middleware"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/cache"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/services"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authRoutes "github.com/R-Krishnananda/leaf-disease-predictor/routes/auth"
	chatRoutes "github.com/R-Krishnananda/leaf-disease-predictor/routes/chat"
	predictRoutes "github.com/R-Krishnananda/leaf-disease-predictor/routes/predict"
	websocketRoutes "github.com/R-Krishnananda/leaf-disease-predictor/routes/websocket"
)

// RegisterRoutes wires every endpoint. All collaborators are constructed in
// main and passed down; nothing reaches for process-wide handles.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, llm *services.MistralService, clf *services.ClassifierService, scratch *services.ScratchStore, predictions *cache.Cache) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "leaf disease predictor backend running"})
	})

	st := store.NewChatStore(db)

	authRoutes.RegisterPublic(r, db)
	websocketRoutes.Register(r, st, llm)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware())
	authRoutes.RegisterProtected(protected)
	chatRoutes.Register(protected, st, llm)
	predictRoutes.Register(protected, clf, scratch, predictions)
}
