package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-chat-gateway/internal/search"
)

// Simulated providers return deterministic canned content so the full
// gateway — streaming, persistence, role filtering — can run without any
// upstream endpoint. Selection happens once at composition time; nothing in
// the call path branches on a mock flag.

// Canned replies for the simulated general provider, keyed by message
// features. Deterministic: the same message always yields the same reply.
var simulatedGeneralReplies = []string{
	"Hello! I'm a simulated assistant standing in for the general answer service. How can I help you today?",
	"That's a great question. In a deployed environment this reply would come from the live general answer upstream.",
	"This simulated service demonstrates the full streaming pipeline: chunked delivery, usage reporting, and atomic persistence, all without upstream access.",
	"I'm running in simulation. Every feature of the gateway still applies: role-scoped configurations, conversation history, and feedback collection.",
}

// SimulatedGeneral is the offline stand-in for the general answer provider.
type SimulatedGeneral struct{}

// NewSimulatedGeneral constructs the simulated general provider.
func NewSimulatedGeneral() *SimulatedGeneral { return &SimulatedGeneral{} }

// Generate returns a canned reply with synthetic usage numbers.
func (p *SimulatedGeneral) Generate(ctx context.Context, history []Turn, message string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError("general", KindTransport, err)
	}

	lower := strings.ToLower(message)
	var text string
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		text = simulatedGeneralReplies[0]
	case strings.Contains(message, "?"):
		text = simulatedGeneralReplies[1]
	case len(history) > 0:
		text = simulatedGeneralReplies[2]
	default:
		text = simulatedGeneralReplies[3]
	}

	prompt := len(strings.Fields(message))
	completion := len(strings.Fields(text))
	return &Result{
		Text: text,
		Usage: &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// SimulatedGrounded is the offline stand-in for the grounded answer
// provider. It retrieves snippets from a lexical index over a bundled
// Markdown knowledge file and cites the sections they came from.
type SimulatedGrounded struct {
	idx     search.Index
	baseURL string
}

// NewSimulatedGrounded constructs the simulated grounded provider. baseURL
// is used to fabricate stable citation URLs ("<base>#<section-slug>").
func NewSimulatedGrounded(idx search.Index, baseURL string) *SimulatedGrounded {
	if baseURL == "" {
		baseURL = "https://kb.example.internal/docs"
	}
	return &SimulatedGrounded{idx: idx, baseURL: baseURL}
}

// Generate answers from the local index, labelled with the configuration it
// nominally ran against.
func (p *SimulatedGrounded) Generate(ctx context.Context, cfg ConfigRef, message string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError("grounded", KindTransport, err)
	}

	var (
		text    string
		sources []Source
	)
	if p.idx != nil {
		if hits := p.idx.TopK(message, 2); len(hits) > 0 {
			var b strings.Builder
			b.WriteString(hits[0].Snippet)
			seen := map[string]struct{}{}
			for _, h := range hits {
				section := h.Section
				if section == "" {
					section = "Knowledge Base"
				}
				if _, dup := seen[section]; dup {
					continue
				}
				seen[section] = struct{}{}
				sources = append(sources, Source{
					Title: truncateRunes(section, citationTitleMax),
					URL:   p.baseURL + "#" + search.Slug(section),
				})
			}
			text = b.String()
		}
	}
	if text == "" {
		text = fmt.Sprintf(
			"I could not find anything about %q in the %s knowledge base (configuration %s). Try rephrasing the question.",
			message, cfg.DomainKey, cfg.ConfigKey,
		)
	}

	// Retrieval context inflates the prompt side a little.
	prompt := len(strings.Fields(message)) + 50
	completion := len(strings.Fields(text))
	return &Result{
		Text:    text,
		Sources: sources,
		Usage: &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}
