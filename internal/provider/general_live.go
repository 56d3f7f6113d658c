package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// GeneralConfig configures the live general-answer provider.
type GeneralConfig struct {
	BaseURLStaging    string
	BaseURLProduction string
	Environment       string // which base URL to use
	TokenScope        string
	DomainName        string
	ModelName         string
	MaxTokens         int
	Timeout           time.Duration // upstream timeout, defaults to 60s
}

// LiveGeneral calls the upstream general-answer HTTP API.
type LiveGeneral struct {
	cfg    GeneralConfig
	tokens TokenSource
	client *http.Client
}

// NewLiveGeneral constructs the live general provider.
func NewLiveGeneral(cfg GeneralConfig, tokens TokenSource) *LiveGeneral {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LiveGeneral{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: timeout},
	}
}

// upstream message part format: each turn's content is a list of typed
// text parts.
type generalPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type generalTurn struct {
	Role    string        `json:"role"`
	Content []generalPart `json:"content"`
}

// Generate sends the conversation history plus the current message and
// normalizes whichever response schema comes back.
func (p *LiveGeneral) Generate(ctx context.Context, history []Turn, message string) (*Result, error) {
	const op = "general"

	token, err := p.tokens.Token(ctx, p.cfg.TokenScope)
	if err != nil {
		return nil, newError(op, KindAuth, err)
	}

	turns := make([]generalTurn, 0, len(history)+1)
	for _, t := range history {
		turns = append(turns, generalTurn{
			Role:    t.Role,
			Content: []generalPart{{Type: "text", Text: t.Content}},
		})
	}
	turns = append(turns, generalTurn{
		Role:    "user",
		Content: []generalPart{{Type: "text", Text: message}},
	})

	payload := map[string]any{
		"domainName": p.cfg.DomainName,
		"modelName":  p.cfg.ModelName,
		"modelPayload": map[string]any{
			"messages":              turns,
			"max_completion_tokens": p.cfg.MaxTokens,
		},
	}

	raw, err := p.post(ctx, token, payload)
	if err != nil {
		return nil, err
	}
	return parseGeneralResponse(raw)
}

func (p *LiveGeneral) post(ctx context.Context, token string, payload any) ([]byte, error) {
	const op = "general"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(op, KindTransport, err)
	}

	url := p.cfg.BaseURLProduction
	if p.cfg.Environment == "staging" && p.cfg.BaseURLStaging != "" {
		url = p.cfg.BaseURLStaging
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newError(op, KindTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	log.Debug().Str("url", url).Msg("calling general answer upstream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, newError(op, KindTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(op, KindTransport, err)
	}
	if resp.StatusCode >= 300 {
		return nil, errorf(op, KindStatus, "upstream status %d", resp.StatusCode)
	}
	return raw, nil
}

// Primary schema: a top-level status marker plus a nested result object
// carrying the answer text and a token-usage breakdown.
type generalPrimary struct {
	Status      string `json:"status"`
	ModelResult *struct {
		Content          string `json:"content"`
		ResponseMetadata struct {
			TokenUsage *Usage `json:"token_usage"`
		} `json:"response_metadata"`
	} `json:"modelResult"`
}

// Fallback schema: an OpenAI-style choices list with a sibling usage object.
type generalFallback struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// parseGeneralResponse normalizes an upstream general-answer payload.
// Precedence is fixed: the primary schema is probed first by key presence;
// the fallback is tried only when the primary keys are absent. A payload
// matching neither fails with a shape error — content is never guessed.
func parseGeneralResponse(raw []byte) (*Result, error) {
	const op = "general"

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, newError(op, KindShape, fmt.Errorf("response is not a JSON object: %w", err))
	}

	_, hasStatus := probe["status"]
	_, hasResult := probe["modelResult"]
	if hasStatus && hasResult {
		var pr generalPrimary
		if err := json.Unmarshal(raw, &pr); err != nil {
			return nil, newError(op, KindShape, err)
		}
		if pr.Status != "success" || pr.ModelResult == nil {
			return nil, errorf(op, KindShape, "primary schema present but status %q", pr.Status)
		}
		return &Result{
			Text:  pr.ModelResult.Content,
			Usage: pr.ModelResult.ResponseMetadata.TokenUsage,
		}, nil
	}

	if _, hasChoices := probe["choices"]; hasChoices {
		var fb generalFallback
		if err := json.Unmarshal(raw, &fb); err != nil {
			return nil, newError(op, KindShape, err)
		}
		if len(fb.Choices) == 0 {
			return nil, newError(op, KindShape, errors.New("empty choices list"))
		}
		return &Result{
			Text:  fb.Choices[0].Message.Content,
			Usage: fb.Usage,
		}, nil
	}

	return nil, errorf(op, KindShape, "response matched neither primary nor fallback schema")
}
