// Package services – FeedbackService
//
// Records thumbs-style feedback on assistant messages. The public API takes
// a 1-5 score and maps it to up/down at the boundary; the stored row
// snapshots the conversation's service type, configuration, and environment
// at submission time so later configuration changes do not rewrite history.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-gateway/internal/access"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/repo"
)

// maxCommentRunes caps the optional free-text comment.
const maxCommentRunes = 2000

// FeedbackService persists ratings on assistant messages.
type FeedbackService struct {
	DB *gorm.DB
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(db *gorm.DB) *FeedbackService {
	return &FeedbackService{DB: db}
}

// Leave records feedback for an assistant message the caller can see.
//
// rating must be 1..5 and maps to down (1-3) or up (4-5). Only assistant
// messages accept feedback, and only within conversations owned by the
// caller; violations surface as ErrMessageNotFound. Repeated submissions
// for the same message are last-write-wins.
func (s *FeedbackService) Leave(ctx context.Context, messageID string, rating int, comment string) (*domain.Feedback, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.String("message.id", messageID),
			attribute.Int("rating", rating),
		),
	)
	defer span.End()

	scope, err := access.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	msg, err := repo.GetMessage(s.DB.WithContext(ctx), messageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.Role != domain.RoleAssistant {
		return nil, ErrForbiddenFeedback
	}

	conv, err := repo.GetConversation(ctx, s.DB, msg.ConversationID, scope.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Ownership failures look exactly like an absent message.
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	value := domain.RatingDown
	if rating >= 4 {
		value = domain.RatingUp
	}

	comment = strings.TrimSpace(comment)
	if r := []rune(comment); len(r) > maxCommentRunes {
		comment = string(r[:maxCommentRunes])
	}

	fb := &domain.Feedback{
		MessageID:       msg.ID,
		UserID:          scope.UserID,
		ConversationID:  conv.ID,
		Rating:          value,
		Comment:         comment,
		ServiceType:     conv.ServiceType,
		ConfigurationID: conv.ConfigurationID,
	}
	if conv.ConfigurationID != nil {
		if cfg, err := repo.GetConfiguration(ctx, s.DB, *conv.ConfigurationID); err == nil {
			env := cfg.Environment
			fb.Environment = &env
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.CreateFeedback(tx, fb)
	})
	if err != nil {
		return nil, err
	}
	return fb, nil
}
