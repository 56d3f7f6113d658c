// Package services – ConversationService
//
// This file implements the ConversationService, the store for conversations
// and their turns. It validates service-type rules (a configuration
// reference is required for grounded exchanges and rejected for general
// ones), applies the role filter to configuration references, enforces
// ownership on every read, and owns the atomicity of a turn: a user message
// may be written eagerly, but the assistant message is written exactly
// once, fully assembled, inside one transaction.
//
// Service-level errors (e.g. ErrConversationNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
// Authorization failures surface as not-found by design.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-chat-gateway/internal/access"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/provider"
	"github.com/tbourn/go-chat-gateway/internal/repo"
)

// placeholder titles eligible for auto-generation from the first message
const defaultTitle = "New conversation"

// titleMaxRunes caps the auto-derived conversation title.
const titleMaxRunes = 50

// ConversationService owns conversation lifecycle and turn persistence.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// MaxMessageRunes caps user message length (0 disables the check).
	MaxMessageRunes int

	// TitleLocale is used to capitalize auto-derived titles.
	TitleLocale language.Tag
}

// NewConversationService constructs a ConversationService with defaults
// matching the public API contract (4000-rune messages).
func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{
		DB:              db,
		MaxMessageRunes: 4000,
		TitleLocale:     language.English,
	}
}

// ConversationSummary is a list item: conversation metadata plus its
// message count.
type ConversationSummary struct {
	domain.Conversation
	MessageCount int64 `json:"message_count"`
}

// Create starts a new conversation for the caller in the access scope.
//
// Rules:
//   - serviceType must be general or grounded.
//   - configurationID is required iff serviceType is grounded.
//   - A grounded configuration must be visible to the caller's roles;
//     otherwise ErrConfigurationNotFound (indistinguishable from absent).
func (s *ConversationService) Create(ctx context.Context, serviceType string, configurationID *string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("service_type", serviceType)),
	)
	defer span.End()

	scope, err := access.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	switch serviceType {
	case domain.ServiceGeneral:
		if configurationID != nil {
			return nil, ErrConfigurationForbidden
		}
	case domain.ServiceGrounded:
		if configurationID == nil || *configurationID == "" {
			return nil, ErrConfigurationRequired
		}
		if _, err := s.resolveConfiguration(ctx, scope, *configurationID); err != nil {
			return nil, err
		}
	default:
		return nil, ErrConversationNotFound
	}

	return repo.CreateConversation(ctx, s.DB, scope.UserID, serviceType, configurationID, defaultTitle)
}

// Resolve fetches a conversation owned by the caller, or
// ErrConversationNotFound.
func (s *ConversationService) Resolve(ctx context.Context, id string) (*domain.Conversation, error) {
	scope, err := access.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	c, err := repo.GetConversation(ctx, s.DB, id, scope.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return c, nil
}

// ResolveConfiguration fetches an active configuration visible to the
// caller, or ErrConfigurationNotFound.
func (s *ConversationService) ResolveConfiguration(ctx context.Context, id string) (*domain.Configuration, error) {
	scope, err := access.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolveConfiguration(ctx, scope, id)
}

func (s *ConversationService) resolveConfiguration(ctx context.Context, scope access.Scope, id string) (*domain.Configuration, error) {
	cfg, err := repo.GetConfiguration(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConfigurationNotFound
		}
		return nil, err
	}
	if !access.Visible(scope, cfg) {
		// Indistinguishable from a configuration that does not exist.
		return nil, ErrConfigurationNotFound
	}
	return cfg, nil
}

// AppendUserTurn validates and persists the caller's message, auto-titling
// the conversation from its first message, and bumps the conversation's
// activity timestamp.
func (s *ConversationService) AppendUserTurn(ctx context.Context, conversationID, text string) (*domain.Message, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "AppendUserTurn",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return nil, ErrMessageTooLong
	}

	conv, err := s.Resolve(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, conversationID, domain.RoleUser, text, nil, nil)
		if err != nil {
			return err
		}
		msg = m

		if shouldAutoTitle(conv.Title) {
			if title := s.deriveTitle(text); title != "" {
				if err := tx.Model(&domain.Conversation{}).
					Where("id = ?", conversationID).
					Update("title", title).Error; err != nil {
					return err
				}
				conv.Title = title
			}
		}
		return repo.TouchConversation(ctx, tx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// CompleteAssistantTurn persists the fully assembled assistant message in a
// single transaction. This is the only way an assistant message is created;
// it is never written incrementally.
func (s *ConversationService) CompleteAssistantTurn(ctx context.Context, conversationID, text string, sources []provider.Source, usage *provider.Usage) (*domain.Message, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "CompleteAssistantTurn",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if _, err := s.Resolve(ctx, conversationID); err != nil {
		return nil, err
	}

	var msg *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, conversationID, domain.RoleAssistant, text, sources, usage)
		if err != nil {
			return err
		}
		msg = m
		return repo.TouchConversation(ctx, tx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListPage returns a page of the caller's conversation summaries, most
// recently active first. serviceType filters when non-empty.
func (s *ConversationService) ListPage(ctx context.Context, serviceType string, page, pageSize int) ([]ConversationSummary, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("service_type", serviceType),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	scope, err := access.FromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConversations(ctx, s.DB, scope.UserID, serviceType)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []ConversationSummary{}, 0, nil
	}

	items, err := repo.ListConversationsPage(ctx, s.DB, scope.UserID, serviceType, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}

	out := make([]ConversationSummary, 0, len(items))
	for _, c := range items {
		count, err := repo.CountMessages(s.DB.WithContext(ctx), c.ID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ConversationSummary{Conversation: c, MessageCount: count})
	}
	return out, total, nil
}

// Get returns a conversation owned by the caller together with its ordered
// messages.
func (s *ConversationService) Get(ctx context.Context, id string) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := repo.ListMessages(s.DB.WithContext(ctx), id, 0)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// Delete removes a conversation owned by the caller, cascading to its
// messages and feedback.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("conversation.id", id)),
	)
	defer span.End()

	scope, err := access.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := repo.DeleteConversation(ctx, s.DB, id, scope.UserID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// History returns the conversation's prior turns in provider form, oldest
// first, excluding the trailing user message when excludeLast is set (the
// current prompt is passed separately to the provider).
func (s *ConversationService) History(ctx context.Context, conversationID string, excludeLast bool) ([]provider.Turn, error) {
	msgs, err := repo.ListMessages(s.DB.WithContext(ctx), conversationID, 0)
	if err != nil {
		return nil, err
	}
	if excludeLast && len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	out := make([]provider.Turn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, provider.Turn{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// shouldAutoTitle reports whether the current title is a placeholder.
func shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitle)
}

// deriveTitle builds a title from the first message: its first
// titleMaxRunes runes, first word capitalized, with an ellipsis when
// clipped.
func (s *ConversationService) deriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	clipped := false
	if r := []rune(text); len(r) > titleMaxRunes {
		text = strings.TrimSpace(string(r[:titleMaxRunes]))
		clipped = true
	}
	if fields := strings.Fields(text); len(fields) > 0 {
		caser := cases.Title(s.titleLocaleOrDefault())
		fields[0] = caser.String(fields[0])
		text = strings.Join(fields, " ")
	}
	if clipped {
		text += "…"
	}
	return text
}

func (s *ConversationService) titleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}
