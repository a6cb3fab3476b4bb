package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	MistralAPIKey string
	MistralModel  string
	ClassifierURL string

	DatabaseURL string

	AppEnv       string
	IsProduction bool

	JWTSecret        string
	TokenExpiryHours int
	Port             string
	UploadDir        string

	// runtime tunables
	RateLimitWindowSeconds int
	RateLimitCapacity      int
	UserConcurrencyLimit   int
	PredictCacheTTLSeconds int
	PredictCacheMaxItems   int
)

// loadAppEnv loads .env for local/staging runs. In production the host
// environment is the single source of truth and .env is ignored.
func loadAppEnv() {
	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "production" {
		return
	}
	// .env is optional outside production; vars may come from the host env
	_ = godotenv.Load()
}

func init() {
	loadAppEnv()

	MistralAPIKey = os.Getenv("MISTRAL_API_KEY")
	MistralModel = os.Getenv("MISTRAL_MODEL")
	if MistralModel == "" {
		MistralModel = "mistral-large-latest"
	}
	ClassifierURL = os.Getenv("CLASSIFIER_URL")

	DatabaseURL = os.Getenv("DATABASE_URL")

	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "" {
		AppEnv = "development"
	}
	IsProduction = AppEnv == "production"

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	TokenExpiryHours = atoiOr(os.Getenv("TOKEN_EXPIRY_HOURS"), 24)
	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "5000"
	}
	UploadDir = os.Getenv("UPLOAD_DIR")
	if UploadDir == "" {
		UploadDir = "uploads"
	}

	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5)
	UserConcurrencyLimit = atoiOr(os.Getenv("USER_CONCURRENCY_LIMIT"), 2)
	PredictCacheTTLSeconds = atoiOr(os.Getenv("PREDICT_CACHE_TTL_SECONDS"), 600)
	PredictCacheMaxItems = atoiOr(os.Getenv("PREDICT_CACHE_MAX_ITEMS"), 500)

	if IsProduction && JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY must be set in production")
	}

	log.Printf("[config] AppEnv=%s IsProduction=%v", AppEnv, IsProduction)
	log.Printf("[config] MistralModel=%s MistralAPIKeyPresent=%v ClassifierURL=%s",
		MistralModel, MistralAPIKey != "", ClassifierURL)
	log.Printf("[config] RateLimit window=%ds capacity=%d userConc=%d predictCacheTTL=%ds predictCacheMax=%d",
		RateLimitWindowSeconds, RateLimitCapacity, UserConcurrencyLimit, PredictCacheTTLSeconds, PredictCacheMaxItems)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
