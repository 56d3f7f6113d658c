// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model.
package repo

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/provider"
)

// CreateMessage inserts a new message row. sources and usage are optional
// and only ever present on assistant messages.
func CreateMessage(db *gorm.DB, conversationID, role, content string, sources []provider.Source, usage *provider.Usage) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if len(sources) > 0 {
		raw, err := json.Marshal(sources)
		if err != nil {
			return nil, err
		}
		s := string(raw)
		m.SourcesJSON = &s
	}
	if usage != nil {
		p, c, t := usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens
		m.PromptTokens, m.CompletionTokens, m.TotalTokens = &p, &c, &t
	}
	return m, db.Create(m).Error
}

// ListMessages returns a conversation's messages ordered deterministically
// (CreatedAt ASC, ID ASC). A limit <= 0 returns all messages.
func ListMessages(db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("conversation_id = ?", conversationID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND deleted_at IS NULL", conversationID).Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeSources unpacks a message's stored citation list. A message
// without sources yields nil.
func DecodeSources(m *domain.Message) ([]provider.Source, error) {
	if m.SourcesJSON == nil || *m.SourcesJSON == "" {
		return nil, nil
	}
	var out []provider.Source
	if err := json.Unmarshal([]byte(*m.SourcesJSON), &out); err != nil {
		return nil, err
	}
	return out, nil
}
