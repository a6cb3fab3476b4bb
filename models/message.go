package models

import "gorm.io/gorm"

// ChatMessage is a single turn in a chat. Role is the caller-supplied tag
// ("user" or "assistant"); conversation order is primary-key order.
type ChatMessage struct {
	gorm.Model
	ChatID  uint   `gorm:"index;not null"`
	Role    string `gorm:"size:20;not null"`
	Content string `gorm:"type:text;not null"`
}
