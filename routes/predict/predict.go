package predict

import (
	"github.com/R-Krishnananda/leaf-disease-predictor/controllers"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/cache"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/services"

	"github.com/gin-gonic/gin"
)

// Register registers the classification route (protected)
func Register(g *gin.RouterGroup, clf controllers.Classifier, scratch *services.ScratchStore, predictions *cache.Cache) {
	g.POST("/predict", controllers.Predict(clf, scratch, predictions))
}
