// Package provider implements the upstream answer providers. Two domains
// exist — the general conversational service and the grounded
// (retrieval-augmented) service — each with a live HTTP implementation and a
// simulated one behind the same interface. Whichever payload schema the
// upstream returns, the adapter normalizes it into one canonical Result; a
// payload matching neither known schema is a hard failure, never a guess.
package provider

import "context"

// Source is one citation attached to a grounded answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Usage is the token-usage triple reported by an upstream call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the canonical normalized answer: the full text, optional
// citations, and optional usage. Adapters never return a partially parsed
// Result; on any failure the Result is nil and the error is a *Error.
type Result struct {
	Text    string
	Sources []Source
	Usage   *Usage
}

// Turn is one prior utterance passed as conversation history.
type Turn struct {
	Role    string
	Content string
}

// ConfigRef identifies the knowledge-base configuration a grounded call
// runs against. DomainKey/ConfigKey address the upstream; Environment picks
// the staging or production endpoint.
type ConfigRef struct {
	DomainKey   string
	ConfigKey   string
	Environment string
}

// General is the plain conversational answer provider. History is an
// ordered list of prior turns, oldest first, excluding the current message.
type General interface {
	Generate(ctx context.Context, history []Turn, message string) (*Result, error)
}

// Grounded is the retrieval-augmented answer provider. It takes no history:
// the upstream is single-turn, and that asymmetry with General is
// deliberate.
type Grounded interface {
	Generate(ctx context.Context, cfg ConfigRef, message string) (*Result, error)
}
