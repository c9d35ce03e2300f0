package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const maxDigestTickets = 10

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

type completeFunc func(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error)

// Digester asks Anthropic for a short narrative of a week's worklog sections.
type Digester struct {
	apiKey   string
	model    string
	complete completeFunc
}

func NewDigester(cfg Config) *Digester {
	model := strings.TrimSpace(cfg.LLMModel)
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Digester{apiKey: cfg.AnthropicAPIKey, model: model, complete: callAnthropic}
}

func (d *Digester) Digest(ctx context.Context, s Sections) (string, error) {
	systemPrompt, userPrompt := buildDigestPrompts(s)
	log.Printf("llm digest provider=anthropic model=%s users=%d tickets=%d", d.model, len(s.UserTotals), len(s.TopTickets))

	text, usage, err := d.complete(ctx, d.apiKey, d.model, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	log.Printf("llm digest done tokens=%d", usage.TotalTokens())

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty digest from model")
	}
	return fmt.Sprintf("Digest %s\n%s", s.Window, text), nil
}

func buildDigestPrompts(s Sections) (string, string) {
	systemPrompt := strings.Join([]string{
		"You summarize a team's time-tracking data for a weekly chat post.",
		"Write 3 to 5 short plain-text lines. No markdown headings, no bullet symbols.",
		"Mention who spent the most time, which tickets dominated, and any ticket whose time mostly falls outside the reporting window.",
		"Only use the numbers given. Do not invent tickets or people.",
	}, "\n")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Reporting window: %s\n\n", s.Window))
	b.WriteString("USER|HOURS\n")
	for _, u := range s.UserTotals {
		b.WriteString(fmt.Sprintf("%s|%.2f\n", u.User, u.Hours))
	}
	b.WriteString("\nTICKET|SUMMARY|USER|HOURS\n")
	for i, t := range s.TopTickets {
		if i >= maxDigestTickets {
			break
		}
		b.WriteString(fmt.Sprintf("%s|%s|%s|%.2f\n", t.IssueKey, t.Summary, t.User, t.Hours))
	}
	b.WriteString("\nTICKET|USER|BEFORE|IN_RANGE|AFTER\n")
	for i, sp := range s.AllRangeSplits {
		if i >= maxDigestTickets {
			break
		}
		b.WriteString(fmt.Sprintf("%s|%s|%.2f|%.2f|%.2f\n", sp.IssueKey, sp.User, sp.Before, sp.Within, sp.After))
	}
	return systemPrompt, b.String()
}

func callAnthropic(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(externalHTTPClient),
	)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}
