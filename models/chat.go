package models

import "gorm.io/gorm"

// Chat is one conversation thread. A user gets at most one thread per
// disease title; the composite unique index makes concurrent first turns
// land on the same row instead of creating duplicates.
type Chat struct {
	gorm.Model
	UserEmail    string        `gorm:"size:120;not null;index;uniqueIndex:idx_owner_disease"`
	DiseaseTitle string        `gorm:"size:200;not null;uniqueIndex:idx_owner_disease"`
	Messages     []ChatMessage `gorm:"constraint:OnDelete:CASCADE"`
}
