package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// Conversation is the single support thread of one customer.
type Conversation struct {
	ID              uuid.UUID  `gorm:"primaryKey"           json:"id"`
	UserID          uuid.UUID  `gorm:"uniqueIndex;not null"  json:"userId"`
	AssignedAdminID *uuid.UUID `json:"assignedAdminId,omitempty"`
	Status          string     `gorm:"not null;default:open" json:"status"`
	UnreadForAdmin  int        `gorm:"not null;default:0"    json:"unreadForAdmin"`
	UnreadForUser   int        `gorm:"not null;default:0"    json:"unreadForUser"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"index"                json:"updatedAt"`
}

type Message struct {
	ID             uuid.UUID  `gorm:"primaryKey"     json:"id"`
	ConversationID uuid.UUID  `gorm:"index;not null" json:"conversationId"`
	SenderID       uuid.UUID  `gorm:"not null"       json:"senderId"`
	SenderRole     string     `gorm:"not null"       json:"senderRole"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	SeenAt         *time.Time `json:"seenAt,omitempty"`
	CreatedAt      time.Time  `gorm:"index"          json:"createdAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
