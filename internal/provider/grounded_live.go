package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// citationTitleMax caps the length of a citation title derived from caption
// or excerpt text.
const citationTitleMax = 100

// GroundedConfig configures the live grounded-answer provider. The grounded
// upstream performs retrieval before answering, so its timeout is longer
// than the general provider's.
type GroundedConfig struct {
	BaseURLStaging    string
	BaseURLProduction string
	TokenScope        string
	Timeout           time.Duration // defaults to 120s
}

// LiveGrounded calls the upstream grounded-answer HTTP API.
type LiveGrounded struct {
	cfg    GroundedConfig
	tokens TokenSource
	client *http.Client
}

// NewLiveGrounded constructs the live grounded provider.
func NewLiveGrounded(cfg GroundedConfig, tokens TokenSource) *LiveGrounded {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LiveGrounded{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: timeout},
	}
}

// Generate runs a single-turn grounded query against the configuration's
// domain. No history is forwarded: the upstream is single-turn.
func (p *LiveGrounded) Generate(ctx context.Context, cfg ConfigRef, message string) (*Result, error) {
	const op = "grounded"

	token, err := p.tokens.Token(ctx, p.cfg.TokenScope)
	if err != nil {
		return nil, newError(op, KindAuth, err)
	}

	payload := map[string]any{
		"domain":         cfg.DomainKey,
		"config_version": cfg.ConfigKey,
		"query":          message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(op, KindTransport, err)
	}

	url := p.cfg.BaseURLProduction
	if cfg.Environment == "staging" && p.cfg.BaseURLStaging != "" {
		url = p.cfg.BaseURLStaging
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newError(op, KindTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	log.Debug().
		Str("url", url).
		Str("domain", cfg.DomainKey).
		Str("config", cfg.ConfigKey).
		Msg("calling grounded answer upstream")

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

	return parseGroundedResponse(raw)
}

// Primary schema: answer text plus a citations list with nested metadata.
type groundedCitation struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Metadata struct {
		Caption struct {
			Text string `json:"text"`
		} `json:"caption"`
		Content string `json:"content"`
	} `json:"metadata"`
}

type groundedPrimary struct {
	Answer    string             `json:"answer"`
	Citations []groundedCitation `json:"citations"`
	Usage     *Usage             `json:"usage"`
}

// Fallback schema: answer text plus a flat {title,url} source list, taken
// verbatim.
type groundedFallback struct {
	Answer   string   `json:"answer"`
	Response string   `json:"response"`
	Content  string   `json:"content"`
	Sources  []Source `json:"sources"`
	Usage    *Usage   `json:"usage"`
}

func (f groundedFallback) text() string {
	switch {
	case f.Response != "":
		return f.Response
	case f.Answer != "":
		return f.Answer
	default:
		return f.Content
	}
}

// parseGroundedResponse normalizes an upstream grounded-answer payload.
// The citations schema is probed first; the flat sources schema is tried
// only when no citations key exists. Both normalize into the same canonical
// source list.
func parseGroundedResponse(raw []byte) (*Result, error) {
	const op = "grounded"

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, newError(op, KindShape, fmt.Errorf("response is not a JSON object: %w", err))
	}

	if _, hasCitations := probe["citations"]; hasCitations {
		var pr groundedPrimary
		if err := json.Unmarshal(raw, &pr); err != nil {
			return nil, newError(op, KindShape, err)
		}
		if pr.Answer == "" {
			return nil, errorf(op, KindShape, "citations schema present but answer text missing")
		}
		sources := make([]Source, 0, len(pr.Citations))
		for _, c := range pr.Citations {
			sources = append(sources, Source{Title: citationTitle(c), URL: c.URL})
		}
		return &Result{Text: pr.Answer, Sources: sources, Usage: pr.Usage}, nil
	}

	var fb groundedFallback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil, newError(op, KindShape, err)
	}
	if text := fb.text(); text != "" {
		return &Result{Text: text, Sources: fb.Sources, Usage: fb.Usage}, nil
	}

	return nil, errorf(op, KindShape, "response matched neither primary nor fallback schema")
}

// citationTitle derives a display title for a citation. Precedence: caption
// text, then content excerpt (both truncated), then the bare identifier.
func citationTitle(c groundedCitation) string {
	if t := c.Metadata.Caption.Text; t != "" {
		return truncateRunes(t, citationTitleMax)
	}
	if t := c.Metadata.Content; t != "" {
		return truncateRunes(t, citationTitleMax)
	}
	return c.ID
}

// truncateRunes clips s to at most max runes.
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
