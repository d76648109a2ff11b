package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageFilter struct {
	ConversationID uuid.UUID
	From           *time.Time
	To             *time.Time
	Page
}

type ConversationFilter struct {
	UserID uuid.UUID
	Page
}

func (r *GormRepo) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.DB.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "conversation")
	}
	return &c, nil
}

func (r *GormRepo) GetOrCreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	err := r.DB.WithContext(ctx).
		Where(models.Conversation{UserID: userID}).
		Attrs(models.Conversation{Status: models.ConversationOpen}).
		FirstOrCreate(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AssignIfUnset records the first staff member who answers a conversation.
func (r *GormRepo) AssignIfUnset(ctx context.Context, convID, staffID uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND assigned_admin_id IS NULL", convID).
		Update("assigned_admin_id", staffID).Error
}

func (r *GormRepo) CreateMessage(ctx context.Context, m *models.Message) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

// TouchConversation reopens the conversation and bumps the given unread counter.
func (r *GormRepo) TouchConversation(ctx context.Context, convID uuid.UUID, unreadColumn string, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]any{
			"status":          models.ConversationOpen,
			"last_message_at": at,
			unreadColumn:      gorm.Expr(unreadColumn + " + 1"),
		}).Error
}

func (r *GormRepo) ResetUnread(ctx context.Context, convID uuid.UUID, unreadColumn string) error {
	return r.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", convID).
		Update(unreadColumn, 0).Error
}

func (r *GormRepo) SetConversationStatus(ctx context.Context, convID uuid.UUID, status string) error {
	return r.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", convID).
		Update("status", status).Error
}

// MarkSeen stamps unseen messages written by any of senderRoles.
func (r *GormRepo) MarkSeen(ctx context.Context, convID uuid.UUID, senderRoles []string, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_role IN ? AND seen_at IS NULL", convID, senderRoles).
		Update("seen_at", at).Error
}

// ListMessages pages from the newest message backwards.
func (r *GormRepo) ListMessages(ctx context.Context, f MessageFilter) ([]models.Message, int64, error) {
	var (
		items []models.Message
		total int64
	)
	db := r.DB.WithContext(ctx).Model(&models.Message{}).Where("conversation_id = ?", f.ConversationID)
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at < ?", *f.To)
	}
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *GormRepo) ListConversations(ctx context.Context, f ConversationFilter) ([]models.Conversation, int64, error) {
	var (
		items []models.Conversation
		total int64
	)
	db := r.DB.WithContext(ctx).Model(&models.Conversation{})
	if f.UserID != uuid.Nil {
		db = db.Where("user_id = ?", f.UserID)
	}
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("updated_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
