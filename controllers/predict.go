package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/cache"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/config"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/services"

	"github.com/gin-gonic/gin"
)

const classifyTimeout = 60 * time.Second

// Classifier maps a stored image to a (label, probability) pair.
type Classifier interface {
	Predict(ctx context.Context, path string) (*services.Prediction, error)
}

// Predict handles POST /predict. The upload lives in the scratch directory
// only for the duration of the call; removal is guaranteed on every exit
// path. Identical uploads are answered from cache without re-running
// inference.
func Predict(clf Classifier, scratch *services.ScratchStore, predictions *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded"})
			return
		}
		if services.SanitizeFilename(header.Filename) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image selected"})
			return
		}

		path, cleanup, err := scratch.SaveTemp(header)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer cleanup()

		key, err := uploadDigest(header)
		if err == nil {
			if v, ok := predictions.Get(key); ok {
				if pred, ok := v.(*services.Prediction); ok {
					c.JSON(http.StatusOK, pred)
					return
				}
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), classifyTimeout)
		defer cancel()

		pred, err := clf.Predict(ctx, path)
		if err != nil {
			log.Printf("[predict] classification failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if key != "" {
			predictions.Set(key, pred, time.Duration(config.PredictCacheTTLSeconds)*time.Second)
		}
		c.JSON(http.StatusOK, pred)
	}
}

// uploadDigest keys the prediction cache by upload content, so renamed
// copies of the same image still hit.
func uploadDigest(header *multipart.FileHeader) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return cache.KeyFromStrings("predict", hex.EncodeToString(h.Sum(nil))), nil
}
