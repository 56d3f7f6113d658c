// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - GET    /chat/conversations        (list, paginated, ETag support)
//   - GET    /chat/conversations/{id}   (detail with ordered messages)
//   - DELETE /chat/conversations/{id}   (delete, cascades to messages)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/access"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/repo"
	"github.com/tbourn/go-chat-gateway/internal/services"
	"github.com/tbourn/go-chat-gateway/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversation summaries.
type ListConversationsResponse struct {
	Conversations []services.ConversationSummary `json:"conversations"`
	Pagination    Pagination                     `json:"pagination"`
}

// MessageView is one message in a conversation detail response. Sources and
// usage appear only on assistant messages that carry them.
type MessageView struct {
	ID        string  `json:"id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Sources   any     `json:"sources,omitempty"`
	Usage     any     `json:"usage,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}

// ConversationDetailResponse is the conversation detail payload.
type ConversationDetailResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []MessageView        `json:"messages"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func messageView(m domain.Message) MessageView {
	v := MessageView{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if srcs, err := repo.DecodeSources(&m); err == nil && len(srcs) > 0 {
		v.Sources = srcs
	}
	if m.TotalTokens != nil {
		v.Usage = gin.H{
			"prompt_tokens":     m.PromptTokens,
			"completion_tokens": m.CompletionTokens,
			"total_tokens":      m.TotalTokens,
		}
	}
	return v
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns a page of the caller's conversations, most recently active first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       service_type   query   string  false "Filter by service type"      Enums(general, grounded)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)
	serviceType := c.Query("service_type")

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.convSvc.(*services.ConversationService); okSvc {
		db = svc.DB
	}
	if db != nil {
		if scope, err := access.FromContext(ctx); err == nil {
			count, maxTS, err := repo.ConversationsStats(ctx, db, scope.UserID)
			if err == nil {
				var ts int64
				if maxTS != nil {
					ts = maxTS.Unix()
				}
				// The key covers the query shape too, so a cached filtered
				// page can never satisfy a differently filtered request.
				etag := fmt.Sprintf(`W/"conversations:%s:%s:%d:%d:%d:%d"`,
					scope.UserID, serviceType, page, pageSize, count, ts)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	items, total, err := h.convSvc.ListPage(ctx, serviceType, page, pageSize)
	if err != nil {
		failConversation(c, err)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get a conversation with its messages
// @Description Returns one of the caller's conversations and its messages in chronological order.
// @Tags        Conversations
// @Produce     json
//
// @Param       Authorization  header  string  true "Bearer token"
// @Param       id             path    string  true "Conversation ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.ConversationDetailResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	conv, msgs, err := h.convSvc.Get(c.Request.Context(), id)
	if err != nil {
		failConversation(c, err)
		return
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView(m))
	}
	ok(c, http.StatusOK, ConversationDetailResponse{Conversation: conv, Messages: views})
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a conversation
// @Description Deletes one of the caller's conversations together with its messages and feedback.
// @Tags        Conversations
//
// @Param       Authorization  header  string  true "Bearer token"
// @Param       id             path    string  true "Conversation ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/conversations/{id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	if err := h.convSvc.Delete(c.Request.Context(), id); err != nil {
		failConversation(c, err)
		return
	}
	noContent(c)
}

// failConversation maps conversation service errors to HTTP results. A
// missing access scope is an internal defect (auth already ran at the
// boundary), so it reports as a 500 rather than a 401.
func failConversation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	default:
		failInternal(c, ErrCodeInternal, err)
	}
}
