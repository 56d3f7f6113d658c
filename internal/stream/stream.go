// Package stream implements the chat streaming pipeline.
//
// A Multiplexer drives one chat exchange end to end: it prepares the
// conversation, invokes the provider, replays the answer to the client as an
// ordered event sequence, and persists the assistant turn atomically at the
// end. The event order is fixed:
//
//	conversation_id (only when this exchange created the conversation),
//	token*, sources?, usage?, message_id?, then exactly one of end or error.
//
// The concatenation of all token payloads equals the persisted assistant
// text. Nothing about the assistant turn is written until the stream
// finishes successfully; a canceled or failed exchange leaves only the user
// message behind.
package stream

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/provider"
	"github.com/tbourn/go-chat-gateway/internal/services"
)

// Event names on the wire.
const (
	EventConversationID = "conversation_id"
	EventToken          = "token"
	EventSources        = "sources"
	EventUsage          = "usage"
	EventMessageID      = "message_id"
	EventEnd            = "end"
	EventError          = "error"
)

// Event is one server-sent event before wire encoding. Data is a
// JSON-serializable payload.
type Event struct {
	Name string
	Data any
}

// Sink receives events in order. A non-nil error aborts the stream and is
// treated as a client disconnect.
type Sink func(Event) error

// TurnStore is the conversation persistence the multiplexer depends on.
type TurnStore interface {
	Create(ctx context.Context, serviceType string, configurationID *string) (*domain.Conversation, error)
	Resolve(ctx context.Context, id string) (*domain.Conversation, error)
	ResolveConfiguration(ctx context.Context, id string) (*domain.Configuration, error)
	AppendUserTurn(ctx context.Context, conversationID, text string) (*domain.Message, error)
	CompleteAssistantTurn(ctx context.Context, conversationID, text string, sources []provider.Source, usage *provider.Usage) (*domain.Message, error)
	History(ctx context.Context, conversationID string, excludeLast bool) ([]provider.Turn, error)
}

// Request describes one chat exchange.
type Request struct {
	// ServiceType is domain.ServiceGeneral or domain.ServiceGrounded.
	ServiceType string

	// ConversationID continues an existing conversation when non-empty;
	// empty starts a new one.
	ConversationID string

	// ConfigurationID selects the grounded configuration. Required for
	// grounded, forbidden for general.
	ConfigurationID string

	// Message is the user's prompt, already trimmed by the transport layer.
	Message string
}

// ErrCanceled is returned when the exchange stops because the client went
// away. No assistant turn is persisted in that case.
var ErrCanceled = errors.New("stream: canceled by client")

// Multiplexer runs chat exchanges against a store and a pair of providers.
// One Multiplexer serves all requests concurrently; Run keeps all per-exchange
// state on its own stack.
type Multiplexer struct {
	Store    TurnStore
	General  provider.General
	Grounded provider.Grounded

	// ChunkRunes bounds each token event's payload. Defaults to 24.
	ChunkRunes int
}

// NewMultiplexer constructs a Multiplexer with the default chunk size.
func NewMultiplexer(store TurnStore, general provider.General, grounded provider.Grounded) *Multiplexer {
	return &Multiplexer{Store: store, General: general, Grounded: grounded, ChunkRunes: 24}
}

// Run executes one exchange.
//
// Errors while preparing the exchange (unknown conversation, forbidden
// configuration, provider misconfiguration) are returned before any event
// reaches the sink, so the transport can still answer with a plain HTTP
// status. Once events flow, failures become a terminal error event and Run
// returns nil; only a client disconnect makes Run return ErrCanceled after
// emission started.
func (m *Multiplexer) Run(ctx context.Context, req Request, sink Sink) error {
	conv, cfg, created, err := m.prepare(ctx, req)
	if err != nil {
		return err
	}
	if _, err := m.Store.AppendUserTurn(ctx, conv.ID, req.Message); err != nil {
		return err
	}

	// The client learns the id only when this exchange created the
	// conversation; on resumes it already has it.
	if created {
		if err := sink(Event{Name: EventConversationID, Data: conv.ID}); err != nil {
			return ErrCanceled
		}
	}

	result, err := m.generate(ctx, req, conv, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCanceled
		}
		log.Ctx(ctx).Error().Err(err).
			Str("conversation_id", conv.ID).
			Str("service_type", req.ServiceType).
			Msg("provider generation failed")
		_ = sink(Event{Name: EventError, Data: "upstream generation failed"})
		return nil
	}

	for _, chunk := range chunkRunes(result.Text, m.chunkSize()) {
		if err := sink(Event{Name: EventToken, Data: chunk}); err != nil {
			return ErrCanceled
		}
	}
	if len(result.Sources) > 0 {
		if err := sink(Event{Name: EventSources, Data: result.Sources}); err != nil {
			return ErrCanceled
		}
	}
	if result.Usage != nil {
		if err := sink(Event{Name: EventUsage, Data: result.Usage}); err != nil {
			return ErrCanceled
		}
	}

	if ctx.Err() != nil {
		return ErrCanceled
	}
	msg, err := m.Store.CompleteAssistantTurn(ctx, conv.ID, result.Text, result.Sources, result.Usage)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("conversation_id", conv.ID).
			Msg("persisting assistant turn failed")
		_ = sink(Event{Name: EventError, Data: "persisting the reply failed"})
		return nil
	}
	if err := sink(Event{Name: EventMessageID, Data: msg.ID}); err != nil {
		return ErrCanceled
	}

	if err := sink(Event{Name: EventEnd, Data: "done"}); err != nil {
		return ErrCanceled
	}
	return nil
}

// prepare resolves or creates the conversation and, for grounded requests,
// resolves the configuration through the role filter. created reports whether
// this exchange started the conversation.
func (m *Multiplexer) prepare(ctx context.Context, req Request) (conv *domain.Conversation, cfg *domain.Configuration, created bool, err error) {
	if req.ConversationID != "" {
		conv, err = m.Store.Resolve(ctx, req.ConversationID)
		if err != nil {
			return nil, nil, false, err
		}
		if conv.ServiceType != req.ServiceType {
			return nil, nil, false, ErrServiceMismatch
		}
		if req.ServiceType == domain.ServiceGrounded {
			// A resumed conversation keeps the configuration it started
			// with; a conflicting request must not silently switch it.
			if req.ConfigurationID != "" &&
				(conv.ConfigurationID == nil || *conv.ConfigurationID != req.ConfigurationID) {
				return nil, nil, false, services.ErrConversationMismatch
			}
			if conv.ConfigurationID != nil {
				cfg, err = m.Store.ResolveConfiguration(ctx, *conv.ConfigurationID)
				if err != nil {
					return nil, nil, false, err
				}
			}
		}
		return conv, cfg, false, nil
	}

	var cfgID *string
	if req.ServiceType == domain.ServiceGrounded {
		cfgID = &req.ConfigurationID
	}
	conv, err = m.Store.Create(ctx, req.ServiceType, cfgID)
	if err != nil {
		return nil, nil, false, err
	}
	if req.ServiceType == domain.ServiceGrounded {
		cfg, err = m.Store.ResolveConfiguration(ctx, req.ConfigurationID)
		if err != nil {
			return nil, nil, false, err
		}
	}
	return conv, cfg, true, nil
}

// ErrServiceMismatch is returned when a conversation is continued on the
// wrong endpoint (a grounded conversation via the general route or vice
// versa).
var ErrServiceMismatch = errors.New("stream: conversation belongs to a different service")

func (m *Multiplexer) generate(ctx context.Context, req Request, conv *domain.Conversation, cfg *domain.Configuration) (*provider.Result, error) {
	switch req.ServiceType {
	case domain.ServiceGrounded:
		ref := provider.ConfigRef{}
		if cfg != nil {
			ref = provider.ConfigRef{
				DomainKey:   cfg.Domain.Key,
				ConfigKey:   cfg.Key,
				Environment: cfg.Environment,
			}
		}
		return m.Grounded.Generate(ctx, ref, req.Message)
	default:
		history, err := m.Store.History(ctx, conv.ID, true)
		if err != nil {
			return nil, err
		}
		return m.General.Generate(ctx, history, req.Message)
	}
}

func (m *Multiplexer) chunkSize() int {
	if m.ChunkRunes > 0 {
		return m.ChunkRunes
	}
	return 24
}

// chunkRunes splits s into rune-aligned chunks of at most size runes. The
// chunks concatenate back to s exactly.
func chunkRunes(s string, size int) []string {
	if s == "" {
		return nil
	}
	r := []rune(s)
	out := make([]string, 0, (len(r)+size-1)/size)
	for start := 0; start < len(r); start += size {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
	}
	return out
}
