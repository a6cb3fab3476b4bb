package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultMistralBaseURL = "https://api.mistral.ai/v1"

var ErrEmptyCompletion = errors.New("empty response from model")

// ChatMessage is one role-tagged turn sent to the completion API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MistralService talks to the Mistral chat-completions API. The API is
// OpenAI-compatible: streaming responses arrive as SSE "data:" lines with
// incremental delta payloads.
type MistralService struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewMistralService(apiKey, model string) *MistralService {
	return &MistralService{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultMistralBaseURL,
		client:  http.DefaultClient,
	}
}

// WithBaseURL points the service at a different API endpoint. Used by tests
// and self-hosted OpenAI-compatible gateways.
func (s *MistralService) WithBaseURL(u string) *MistralService {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

// StreamComplete sends the message list and concatenates streamed text
// fragments in arrival order, invoking onDelta for each fragment. Returns
// the full text once the stream ends. An empty concatenation falls back to
// one non-streaming call; if that is empty too the turn fails.
func (s *MistralService) StreamComplete(ctx context.Context, messages []ChatMessage, onDelta func(string)) (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		log.Printf("[mistral] MISTRAL_API_KEY is not set")
		return "", fmt.Errorf("MISTRAL_API_KEY is not set")
	}

	text, err := s.callStream(ctx, messages, onDelta)
	if err != nil && isRetriable(err) {
		sleepWithContext(ctx, 2*time.Second)
		text, err = s.callStream(ctx, messages, onDelta)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		// some gateways answer a stream request with a contentless stream;
		// retry once without streaming before giving up
		text, err = s.call(ctx, messages)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", ErrEmptyCompletion
		}
		if onDelta != nil {
			onDelta(text)
		}
	}
	return text, nil
}

// Complete is the non-streaming variant.
func (s *MistralService) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		log.Printf("[mistral] MISTRAL_API_KEY is not set")
		return "", fmt.Errorf("MISTRAL_API_KEY is not set")
	}

	text, err := s.call(ctx, messages)
	if err != nil && isRetriable(err) {
		sleepWithContext(ctx, 2*time.Second)
		text, err = s.call(ctx, messages)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(text), nil
}

func (s *MistralService) newRequest(ctx context.Context, messages []ChatMessage, stream bool) (*http.Request, error) {
	reqBody := map[string]any{
		"model":    s.model,
		"messages": messages,
		"stream":   stream,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

func (s *MistralService) call(ctx context.Context, messages []ChatMessage) (string, error) {
	req, err := s.newRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}
	log.Printf("[mistral] POST %s model=%s", req.URL, s.model)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("decode error: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return parsed.Choices[0].Message.Content, nil
}

func (s *MistralService) callStream(ctx context.Context, messages []ChatMessage, onDelta func(string)) (string, error) {
	req, err := s.newRequest(ctx, messages, true)
	if err != nil {
		return "", err
	}
	log.Printf("[mistral] POST %s model=%s (stream)", req.URL, s.model)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	full := strings.Builder{}
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "data:") {
			line = strings.TrimSpace(line[5:])
		}
		if line == "[DONE]" {
			break
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			full.WriteString(ch.Delta.Content)
			if onDelta != nil {
				onDelta(ch.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("stream read error: %w", err)
	}
	return full.String(), nil
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "status 503") || strings.Contains(e, "unavailable") {
		return true
	}
	if strings.Contains(e, "status 429") || strings.Contains(e, "rate limit") || strings.Contains(e, "quota") {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
