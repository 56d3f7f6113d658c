// Chat streaming HTTP handlers.
//
// This file exposes the two SSE chat endpoints:
//   - POST /chat/general           (open-domain chat)
//   - POST /chat/domain-grounded   (retrieval-grounded chat)
//
// Handlers are transport-thin: they validate input, hand the exchange to the
// stream multiplexer, and encode its events as server-sent events. Failures
// before the first event are plain HTTP errors; once the stream is open,
// failures arrive as a terminal error event instead.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-gateway/internal/access"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/http/middleware"
	"github.com/tbourn/go-chat-gateway/internal/services"
	"github.com/tbourn/go-chat-gateway/internal/stream"
)

//
// Service contracts (context-aware)
//

// ChatStreamer runs one streaming chat exchange end to end.
//
// Implementations must be safe for concurrent use and must honor the
// provided context for cancellation.
type ChatStreamer interface {
	Run(ctx context.Context, req stream.Request, sink stream.Sink) error
}

// ConversationService defines conversation resource operations consumed by
// HTTP handlers.
type ConversationService interface {
	// ListPage returns a page of conversation summaries and the total count.
	ListPage(ctx context.Context, serviceType string, page, pageSize int) ([]services.ConversationSummary, int64, error)
	// Get returns one conversation with its ordered messages.
	Get(ctx context.Context, id string) (*domain.Conversation, []domain.Message, error)
	// Delete removes a conversation and everything under it.
	Delete(ctx context.Context, id string) error
}

// ConfigurationService defines role-filtered configuration reads.
type ConfigurationService interface {
	// List returns the active configurations visible to the caller.
	List(ctx context.Context, environment string) ([]domain.Configuration, error)
	// Resolve returns one visible configuration or a not-found error.
	Resolve(ctx context.Context, id string) (*domain.Configuration, error)
}

// FeedbackService records ratings on assistant messages.
type FeedbackService interface {
	// Leave submits a 1-5 rating with an optional comment for messageID.
	Leave(ctx context.Context, messageID string, rating int, comment string) (*domain.Feedback, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for chat, conversations,
// configurations, and feedback. It depends on abstract service interfaces
// to keep transport concerns separate from business logic.
type Handlers struct {
	streamer ChatStreamer
	convSvc  ConversationService
	cfgSvc   ConfigurationService
	fbSvc    FeedbackService
}

// New constructs a Handlers instance bound to the given services.
func New(streamer ChatStreamer, convSvc ConversationService, cfgSvc ConfigurationService, fbSvc FeedbackService) *Handlers {
	return &Handlers{streamer: streamer, convSvc: convSvc, cfgSvc: cfgSvc, fbSvc: fbSvc}
}

//
// DTOs
//

// ChatRequest is the JSON payload for both chat endpoints.
type ChatRequest struct {
	// Message is the user's prompt (1-4000 characters).
	Message string `json:"message" binding:"required" example:"What is our refund policy?"`
	// ConversationID continues an existing conversation when set.
	ConversationID string `json:"conversation_id,omitempty" format:"uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// ConfigurationID selects the knowledge configuration. Required when
	// starting a grounded conversation; rejected on the general endpoint.
	ConfigurationID string `json:"configuration_id,omitempty" format:"uuid"`
}

// sseFrame is the wire shape of one event's data line.
type sseFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// maxMessageRunes mirrors the service-layer message cap so validation can
// happen before the stream opens.
const maxMessageRunes = 4000

//
// Handlers
//

// ChatGeneral godoc
// @ID          chatGeneral
// @Summary     Stream a general chat reply
// @Description Streams the assistant's reply over server-sent events. Each event is a JSON object with a type (conversation_id, token, sources, usage, message_id, end, error) and a payload.
// @Tags        Chat
// @Accept      json
// @Produce     text/event-stream
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       body           body    handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {string} string "SSE stream"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/general [post]
func (h *Handlers) ChatGeneral(c *gin.Context) {
	h.streamChat(c, domain.ServiceGeneral)
}

// ChatGrounded godoc
// @ID          chatGrounded
// @Summary     Stream a knowledge-grounded chat reply
// @Description Streams the assistant's reply over server-sent events, grounded in the selected knowledge configuration. Source citations arrive as a sources event before the stream ends.
// @Tags        Chat
// @Accept      json
// @Produce     text/event-stream
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       body           body    handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {string} string "SSE stream"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Conversation or configuration not found"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/domain-grounded [post]
func (h *Handlers) ChatGrounded(c *gin.Context) {
	h.streamChat(c, domain.ServiceGrounded)
}

func (h *Handlers) streamChat(c *gin.Context, serviceType string) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" || utf8.RuneCountInString(msg) > maxMessageRunes {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation,
			"message must be between 1 and 4000 characters")
		return
	}
	switch serviceType {
	case domain.ServiceGeneral:
		if req.ConfigurationID != "" {
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidation,
				"configuration_id is not accepted on the general endpoint")
			return
		}
	case domain.ServiceGrounded:
		if req.ConversationID == "" && req.ConfigurationID == "" {
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidation,
				"configuration_id is required to start a grounded conversation")
			return
		}
	}

	flusher, okFlush := c.Writer.(http.Flusher)
	if !okFlush {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "streaming unsupported")
		return
	}

	streamDone := middleware.StreamStarted(serviceType)
	started := false
	sink := func(ev stream.Event) error {
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Writer.WriteHeader(http.StatusOK)
			started = true
		}
		payload, err := json.Marshal(sseFrame{Type: ev.Name, Data: ev.Data})
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.streamer.Run(c.Request.Context(), stream.Request{
		ServiceType:     serviceType,
		ConversationID:  req.ConversationID,
		ConfigurationID: req.ConfigurationID,
		Message:         msg,
	}, sink)
	switch {
	case err == nil:
		streamDone("ok")
	case errors.Is(err, stream.ErrCanceled):
		streamDone("canceled")
	case started:
		// The stream already carried a terminal event; nothing more to send.
		streamDone("error")
	default:
		streamDone("error")
		status, code, msg := mapStreamError(err)
		if status >= http.StatusInternalServerError {
			failInternal(c, code, err)
		} else {
			fail(c, status, code, msg)
		}
	}
}

// mapStreamError translates pre-stream failures to HTTP results. A missing
// access scope means the auth middleware did not run; that is an internal
// defect, not a client error.
func mapStreamError(err error) (int, string, string) {
	switch {
	case errors.Is(err, access.ErrNoScope):
		return http.StatusInternalServerError, ErrCodeInternal, "internal error"
	case errors.Is(err, services.ErrConversationNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "conversation not found"
	case errors.Is(err, services.ErrConfigurationNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "configuration not found"
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong):
		return http.StatusUnprocessableEntity, ErrCodeValidation,
			"message must be between 1 and 4000 characters"
	case errors.Is(err, services.ErrConfigurationRequired):
		return http.StatusUnprocessableEntity, ErrCodeValidation,
			"configuration_id is required for grounded conversations"
	case errors.Is(err, services.ErrConfigurationForbidden):
		return http.StatusUnprocessableEntity, ErrCodeValidation,
			"configuration_id is not accepted for general conversations"
	case errors.Is(err, stream.ErrServiceMismatch):
		return http.StatusUnprocessableEntity, ErrCodeValidation,
			"conversation belongs to a different chat service"
	case errors.Is(err, services.ErrConversationMismatch):
		return http.StatusUnprocessableEntity, ErrCodeValidation,
			"conversation was started with a different configuration"
	default:
		return http.StatusInternalServerError, ErrCodeStreamFailed, "failed to start the stream"
	}
}
