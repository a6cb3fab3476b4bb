package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R-Krishnananda/leaf-disease-predictor/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStorageUnavailable wraps persistence failures so handlers can map them
// to a stable status without inspecting driver errors.
var ErrStorageUnavailable = errors.New("chat storage unavailable")

// ChatStore manages per-(user, disease) transcripts. Transcripts are
// append-only: each successful turn adds a user/assistant message pair,
// committed atomically, and bumps the session's updated_at.
type ChatStore struct {
	db *gorm.DB
}

func NewChatStore(db *gorm.DB) *ChatStore {
	return &ChatStore{db: db}
}

// AppendTurn records one completed chat turn for (ownerEmail, diseaseTitle),
// creating the session on first use. The user and assistant messages are
// written in that order inside a single transaction, so a reader never sees
// one without the other. Returns the session with its full transcript.
func (s *ChatStore) AppendTurn(ctx context.Context, ownerEmail, diseaseTitle, userText, assistantText string) (*models.Chat, error) {
	var chatID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// insert-if-absent on the unique (user_email, disease_title) pair;
		// on conflict the existing row is fetched instead.
		chat := models.Chat{UserEmail: ownerEmail, DiseaseTitle: diseaseTitle}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_email"}, {Name: "disease_title"}},
			DoNothing: true,
		}).Create(&chat).Error; err != nil {
			return err
		}
		if chat.ID == 0 {
			if err := tx.Where("user_email = ? AND disease_title = ?", ownerEmail, diseaseTitle).
				First(&chat).Error; err != nil {
				return err
			}
		}

		turn := []models.ChatMessage{
			{ChatID: chat.ID, Role: "user", Content: userText},
			{ChatID: chat.ID, Role: "assistant", Content: assistantText},
		}
		if err := tx.Create(&turn).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Chat{}).Where("id = ?", chat.ID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}
		chatID = chat.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	var chat models.Chat
	if err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&chat, chatID).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &chat, nil
}

// ListSessions returns all of the owner's sessions, most recently updated
// first, each with its transcript in conversation order. Read-only.
func (s *ChatStore) ListSessions(ctx context.Context, ownerEmail string) ([]models.Chat, error) {
	var chats []models.Chat
	if err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_email = ?", ownerEmail).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return chats, nil
}

// GetSession fetches one session or gorm.ErrRecordNotFound.
func (s *ChatStore) GetSession(ctx context.Context, ownerEmail, diseaseTitle string) (*models.Chat, error) {
	var chat models.Chat
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_email = ? AND disease_title = ?", ownerEmail, diseaseTitle).
		First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &chat, nil
}
