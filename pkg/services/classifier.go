package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Prediction is the classifier's answer for one image.
type Prediction struct {
	Label       string  `json:"predicted_class"`
	Probability float64 `json:"probability"`
}

// ClassifierService invokes the external leaf-disease inference server.
// The model itself is a black box behind an HTTP endpoint that accepts a
// multipart image and answers with a (label, probability) pair.
type ClassifierService struct {
	endpoint string
	client   *http.Client
}

func NewClassifierService(endpoint string) *ClassifierService {
	return &ClassifierService{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Predict uploads the image at path to the inference server and returns the
// predicted label with its confidence.
func (s *ClassifierService) Predict(ctx context.Context, path string) (*Prediction, error) {
	if s.endpoint == "" {
		return nil, fmt.Errorf("CLASSIFIER_URL is not set")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	log.Printf("[classifier] POST %s image=%s", s.endpoint, filepath.Base(path))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}

	var pred Prediction
	if err := json.Unmarshal(respBytes, &pred); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	if pred.Label == "" {
		return nil, fmt.Errorf("classifier returned no label")
	}
	return &pred, nil
}
