package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/R-Krishnananda/leaf-disease-predictor/middleware"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/services"
	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

type wsStartPayload struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	DiseaseTitle string `json:"disease_title"`
}

// ChatWS streams a chat turn over WebSocket.
// Client protocol (JSON messages):
//
//	-> {type: "start", message: string, disease_title?: string}
//	<- {type: "delta", data: string}
//	<- {type: "done", ok: true}
//	<- {type: "error", error: string}
//
// The client may send {type: "stop"} to abandon the stream; an abandoned
// turn is not persisted.
func ChatWS(st *store.ChatStore, llm Completer) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Authenticate via ?token=JWT; browsers cannot set headers on WS
		tokenStr := strings.TrimSpace(c.Query("token"))
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query"})
			return
		}
		email, _, err := middleware.ParseToken(tokenStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade error: %v", err)
			return
		}
		defer conn.Close()

		conn.SetReadLimit(1 << 20) // 1MB
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})

		// One start message per connection
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[ws] read message error: %v", err)
			return
		}
		var start wsStartPayload
		if err := json.Unmarshal(msgBytes, &start); err != nil || strings.ToLower(start.Type) != "start" || strings.TrimSpace(start.Message) == "" {
			_ = conn.WriteJSON(gin.H{"type": "error", "error": "invalid start payload"})
			return
		}

		title := strings.TrimSpace(start.DiseaseTitle)
		if title == "" {
			title = defaultDiseaseTitle
		}

		// Bound concurrent completions per user
		release := middleware.AcquireUserSlot(email)
		defer release()

		// Prior turns of this thread give the model its context; recent
		// turns only, the steering instruction keeps answers short anyway.
		var messages []services.ChatMessage
		if chat, err := st.GetSession(c.Request.Context(), email, title); err == nil {
			for _, m := range chat.Messages {
				messages = append(messages, services.ChatMessage{Role: m.Role, Content: m.Content})
			}
			if len(messages) > 6 {
				messages = messages[len(messages)-6:]
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			_ = conn.WriteJSON(gin.H{"type": "error", "error": "Failed to fetch chat history"})
			return
		}
		messages = append(messages, services.ChatMessage{
			Role:    "user",
			Content: start.Message + steeringInstruction,
		})

		parentCtx, cancelTimeout := context.WithTimeout(c.Request.Context(), completionTimeout)
		ctx, cancel := context.WithCancel(parentCtx)
		defer func() {
			cancel()
			cancelTimeout()
		}()

		// Reader goroutine listens for {type:"stop"}
		stopCh := make(chan struct{})
		go func() {
			for {
				if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
					return
				}
				mt, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
					continue
				}
				var obj struct {
					Type string `json:"type"`
				}
				_ = json.Unmarshal(msg, &obj)
				if strings.ToLower(strings.TrimSpace(obj.Type)) == "stop" {
					select {
					case <-stopCh:
					default:
						close(stopCh)
					}
					return
				}
			}
		}()

		isStopped := func() bool {
			select {
			case <-stopCh:
				return true
			default:
				return false
			}
		}

		var full strings.Builder
		reply, err := llm.StreamComplete(ctx, messages, func(chunk string) {
			if isStopped() {
				cancel()
				return
			}
			full.WriteString(chunk)
			_ = conn.WriteJSON(gin.H{"type": "delta", "data": chunk})
		})

		if isStopped() {
			_ = conn.WriteJSON(gin.H{"type": "done", "ok": true, "stopped": true})
			return
		}
		if err != nil {
			// a canceled context after partial output also lands here
			if full.Len() == 0 {
				log.Printf("[ws] stream failed: %v", err)
				_ = conn.WriteJSON(gin.H{"type": "error", "error": "Error generating response"})
				return
			}
			reply = full.String()
		}

		if _, err := st.AppendTurn(c.Request.Context(), email, title, start.Message, reply); err != nil {
			log.Printf("[ws] failed to persist turn for %s/%s: %v", email, title, err)
		}

		_ = conn.WriteJSON(gin.H{"type": "done", "ok": true})
	}
}
