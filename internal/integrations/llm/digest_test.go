package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"worklogbot/internal/domain"
)

func sampleSections() Sections {
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	return Sections{
		Window: domain.NewWindow(start, start.AddDate(0, 0, 6)),
		TopN:   10,
		UserTotals: []domain.UserTotal{
			{User: "Alice", Hours: 3.5},
			{User: "Bob", Hours: 1},
		},
		TopTickets: []domain.TicketTotal{
			{IssueKey: "OPS-1", Summary: "Fix login", User: "Alice", Hours: 3.5},
		},
		AllRangeSplits: []domain.CategorySplit{
			{IssueKey: "OPS-1", Summary: "Fix login", User: "Alice", Before: 2, Within: 3.5},
		},
	}
}

func TestBuildDigestPrompts(t *testing.T) {
	system, user := buildDigestPrompts(sampleSections())

	if !strings.Contains(system, "3 to 5") {
		t.Fatalf("expected line budget in system prompt, got %s", system)
	}
	for _, want := range []string{
		"Reporting window: 2024-05-06 ~ 2024-05-12",
		"Alice|3.50",
		"OPS-1|Fix login|Alice|3.50",
		"OPS-1|Alice|2.00|3.50|0.00",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("expected %q in user prompt, prompt=%s", want, user)
		}
	}
}

func TestDigestWrapsModelText(t *testing.T) {
	d := NewDigester(Config{AnthropicAPIKey: "sk-test"})
	if d.model != defaultAnthropicModel {
		t.Fatalf("expected default model, got %s", d.model)
	}
	d.complete = func(_ context.Context, apiKey, model, _, _ string) (string, LLMUsage, error) {
		if apiKey != "sk-test" {
			t.Fatalf("unexpected api key %q", apiKey)
		}
		return "  Alice led with 3.5h on OPS-1.\n", LLMUsage{InputTokens: 10, OutputTokens: 5}, nil
	}

	got, err := d.Digest(context.Background(), sampleSections())
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	want := "Digest 2024-05-06 ~ 2024-05-12\nAlice led with 3.5h on OPS-1."
	if got != want {
		t.Fatalf("Digest = %q, want %q", got, want)
	}
}

func TestDigestErrors(t *testing.T) {
	d := NewDigester(Config{LLMModel: "claude-test"})
	d.complete = func(context.Context, string, string, string, string) (string, LLMUsage, error) {
		return "", LLMUsage{}, errors.New("overloaded")
	}
	if _, err := d.Digest(context.Background(), sampleSections()); err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected model error, got %v", err)
	}

	d.complete = func(context.Context, string, string, string, string) (string, LLMUsage, error) {
		return "   ", LLMUsage{}, nil
	}
	if _, err := d.Digest(context.Background(), sampleSections()); err == nil {
		t.Fatal("expected error for blank digest")
	}
}

func TestLLMUsageTotalTokens(t *testing.T) {
	u := LLMUsage{InputTokens: 120, OutputTokens: 30, CacheReadInputTokens: 1000}
	if u.TotalTokens() != 150 {
		t.Fatalf("TotalTokens() = %d, want 150", u.TotalTokens())
	}
}
