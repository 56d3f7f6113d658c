// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Ownership is always enforced in the
// WHERE clause; a conversation owned by someone else is indistinguishable
// from a missing one (ErrNotFound either way).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// CreateConversation inserts a new Conversation row owned by userID.
// configurationID must be nil for general conversations and set for
// grounded ones; that rule is validated in the service layer.
func CreateConversation(ctx context.Context, db *gorm.DB, userID, serviceType string, configurationID *string, title string) (*domain.Conversation, error) {
	c := &domain.Conversation{
		ID:              uuid.NewString(),
		UserID:          userID,
		ServiceType:     serviceType,
		ConfigurationID: configurationID,
		Title:           title,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a single conversation by its ID and owner.
// Returns ErrNotFound when missing or owned by a different user.
func GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountConversations returns the total number of conversations owned by
// userID, optionally restricted to one service type.
func CountConversations(ctx context.Context, db *gorm.DB, userID, serviceType string) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("user_id = ?", userID)
	if serviceType != "" {
		q = q.Where("service_type = ?", serviceType)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of conversations for userID, newest
// first (by last update). serviceType filters when non-empty.
func ListConversationsPage(ctx context.Context, db *gorm.DB, userID, serviceType string, offset, limit int) ([]domain.Conversation, error) {
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Offset(offset).
		Limit(limit)
	if serviceType != "" {
		q = q.Where("service_type = ?", serviceType)
	}
	var out []domain.Conversation
	err := q.Find(&out).Error
	return out, err
}

// UpdateConversationTitle sets the title of a conversation owned by userID.
// Returns ErrNotFound when no row matched.
func UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchConversation bumps a conversation's updated_at so listings order by
// recent activity.
func TouchConversation(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// DeleteConversation removes a conversation owned by userID together with
// its messages and their feedback, in one transaction. Returns ErrNotFound
// when the conversation does not exist or belongs to someone else.
func DeleteConversation(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Conversation
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Feedback{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&c).Error
	})
}
