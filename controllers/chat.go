package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/R-Krishnananda/leaf-disease-predictor/middleware"
	"github.com/R-Krishnananda/leaf-disease-predictor/models"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/services"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/store"

	"github.com/gin-gonic/gin"
)

// steeringInstruction is appended to every outbound user message. It is
// never persisted; the transcript stores the raw message text.
const steeringInstruction = " Instruction: Respond in 1 paragraph. " +
	"Only respond to content about agriculture, strictly agriculture only. " +
	"if not agriculture respond 'No Valid query'."

// defaultDiseaseTitle groups turns sent without a disease title.
const defaultDiseaseTitle = "General"

const completionTimeout = 90 * time.Second

// Completer streams assistant text for an ordered message list.
type Completer interface {
	StreamComplete(ctx context.Context, messages []services.ChatMessage, onDelta func(string)) (string, error)
}

// Chat handles POST /chat: build the outbound message list, stream the
// completion, persist the turn, return the reply plus the updated history.
func Chat(st *store.ChatStore, llm Completer) gin.HandlerFunc {
	return func(c *gin.Context) {
		emailRaw, _ := c.Get(middleware.ContextUserEmailKey)
		email, _ := emailRaw.(string)

		var body struct {
			Message      string          `json:"message"`
			History      json.RawMessage `json:"history"`
			DiseaseTitle string          `json:"disease_title"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No JSON data provided"})
			return
		}
		if strings.TrimSpace(body.Message) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
			return
		}

		history, ok := parseHistory(body.History)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Chat history must be a list"})
			return
		}

		// The caller's trailing history entry is its own copy of the new
		// message, so it is dropped; the steering instruction is added only
		// to the outbound copy.
		messages := append(history, services.ChatMessage{
			Role:    "user",
			Content: body.Message + steeringInstruction,
		})

		ctx, cancel := context.WithTimeout(c.Request.Context(), completionTimeout)
		defer cancel()

		reply, err := llm.StreamComplete(ctx, messages, nil)
		if err != nil {
			log.Printf("[chat] completion failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating response"})
			return
		}

		title := strings.TrimSpace(body.DiseaseTitle)
		if title == "" {
			title = defaultDiseaseTitle
		}

		// Persist the raw user text, not the instrumented outbound copy. A
		// persistence failure is logged but the reply is still returned;
		// the caller keeps the completion it paid for.
		if _, err := st.AppendTurn(c.Request.Context(), email, title, body.Message, reply); err != nil {
			log.Printf("[chat] failed to persist turn for %s/%s: %v", email, title, err)
		}

		c.JSON(http.StatusOK, gin.H{
			"response": reply,
			"history":  append(messages, services.ChatMessage{Role: "assistant", Content: reply}),
		})
	}
}

// parseHistory decodes the caller-supplied history, dropping its trailing
// entry (superseded by the new message) and any malformed entries. Only a
// history that is not a list at all is rejected.
func parseHistory(raw json.RawMessage) ([]services.ChatMessage, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	if len(entries) > 0 {
		entries = entries[:len(entries)-1]
	}
	out := make([]services.ChatMessage, 0, len(entries))
	for _, e := range entries {
		role, okRole := e["role"].(string)
		content, okContent := e["content"].(string)
		if !okRole || !okContent {
			continue
		}
		out = append(out, services.ChatMessage{Role: role, Content: content})
	}
	return out, true
}

// ListChats handles GET /chats: all of the caller's sessions, most recently
// updated first.
func ListChats(st *store.ChatStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		emailRaw, _ := c.Get(middleware.ContextUserEmailKey)
		email, _ := emailRaw.(string)

		sessions, err := st.ListSessions(c.Request.Context(), email)
		if err != nil {
			log.Printf("[chat] failed to list sessions for %s: %v", email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chat history"})
			return
		}

		out := make([]gin.H, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, gin.H{
				"disease_title": s.DiseaseTitle,
				"messages":      transcriptView(s.Messages),
				"updated_at":    s.UpdatedAt,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

func transcriptView(msgs []models.ChatMessage) []services.ChatMessage {
	out := make([]services.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, services.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
