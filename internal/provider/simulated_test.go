package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/tbourn/go-chat-gateway/internal/search"
)

func TestSimulatedGeneral_Deterministic(t *testing.T) {
	p := NewSimulatedGeneral()

	first, err := p.Generate(context.Background(), nil, "Hello there")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := p.Generate(context.Background(), nil, "Hello there")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.Text != second.Text {
		t.Fatal("same message must yield the same reply")
	}
	if first.Usage == nil || first.Usage.TotalTokens != first.Usage.PromptTokens+first.Usage.CompletionTokens {
		t.Fatalf("usage = %+v", first.Usage)
	}
}

func TestSimulatedGeneral_BranchesOnMessage(t *testing.T) {
	p := NewSimulatedGeneral()
	ctx := context.Background()

	greeting, _ := p.Generate(ctx, nil, "hello")
	question, _ := p.Generate(ctx, nil, "what is the refund window?")
	if greeting.Text == question.Text {
		t.Fatal("greeting and question should take different reply branches")
	}

	withHistory, _ := p.Generate(ctx, []Turn{{Role: "user", Content: "earlier"}}, "and also")
	fresh, _ := p.Generate(ctx, nil, "and also")
	if withHistory.Text == fresh.Text {
		t.Fatal("history should influence the reply branch")
	}
}

func TestSimulatedGeneral_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSimulatedGeneral().Generate(ctx, nil, "hello"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestSimulatedGrounded_RetrievesAndCites(t *testing.T) {
	md := strings.NewReader(`# Refund Policy

Customers can request a full refund within 30 days of purchase as long as the item is unused.

# Shipping

Standard shipping takes 3 to 5 business days within the continental region.
`)
	idx, err := search.NewIndexFromReader(md)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	p := NewSimulatedGrounded(idx, "https://kb.test/docs")
	res, err := p.Generate(context.Background(), ConfigRef{DomainKey: "support", ConfigKey: "v1"}, "how do I request a refund")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(res.Text, "refund") {
		t.Fatalf("text = %q", res.Text)
	}
	if len(res.Sources) == 0 {
		t.Fatal("expected at least one citation")
	}
	if res.Sources[0].Title != "Refund Policy" {
		t.Fatalf("sources[0].Title = %q", res.Sources[0].Title)
	}
	if want := "https://kb.test/docs#" + search.Slug("Refund Policy"); res.Sources[0].URL != want {
		t.Fatalf("sources[0].URL = %q, want %q", res.Sources[0].URL, want)
	}
	if res.Usage == nil || res.Usage.TotalTokens <= 0 {
		t.Fatalf("usage = %+v", res.Usage)
	}
}

func TestSimulatedGrounded_NoMatch(t *testing.T) {
	idx := search.NewIndexFromStrings([]string{
		"Customers can request a full refund within 30 days of purchase.",
	})
	p := NewSimulatedGrounded(idx, "")

	res, err := p.Generate(context.Background(), ConfigRef{DomainKey: "support", ConfigKey: "v1"}, "zzzz qqqq")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("unmatched query should yield no sources, got %v", res.Sources)
	}
	if !strings.Contains(res.Text, "support") || !strings.Contains(res.Text, "v1") {
		t.Fatalf("fallback text should name the configuration, got %q", res.Text)
	}
}

func TestSimulatedGrounded_NilIndex(t *testing.T) {
	p := NewSimulatedGrounded(nil, "")
	res, err := p.Generate(context.Background(), ConfigRef{DomainKey: "d", ConfigKey: "c"}, "anything")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text == "" {
		t.Fatal("nil index must still produce a fallback answer")
	}
}
