package main

import (
	"log"
	"time"

	"github.com/R-Krishnananda/leaf-disease-predictor/middleware"
	"github.com/R-Krishnananda/leaf-disease-predictor/models"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/cache"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/config"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/services"
	"github.com/R-Krishnananda/leaf-disease-predictor/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// config init via package init()

	// init DB: MySQL when DATABASE_URL is set, local sqlite otherwise
	var dialector gorm.Dialector
	if config.DatabaseURL != "" {
		dialector = mysql.Open(config.DatabaseURL)
	} else {
		dialector = sqlite.Open("app.db")
	}
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Chat{}, &models.ChatMessage{}); err != nil {
		log.Fatalf("failed migrate: %v", err)
	}

	// external collaborators, constructed once and injected
	llm := services.NewMistralService(config.MistralAPIKey, config.MistralModel)
	clf := services.NewClassifierService(config.ClassifierURL)
	scratch, err := services.NewScratchStore(config.UploadDir)
	if err != nil {
		log.Fatalf("failed to prepare upload dir: %v", err)
	}
	predictions := cache.New(config.PredictCacheMaxItems)

	middleware.SetRateLimitConfig(
		time.Duration(config.RateLimitWindowSeconds)*time.Second,
		config.RateLimitCapacity,
		config.UserConcurrencyLimit,
	)

	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173", "http://127.0.0.1:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, llm, clf, scratch, predictions)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
