package generation

import (
	"context"
	"fmt"
	"strings"
)

const (
	anthropicDefaultURL   = "https://api.anthropic.com"
	anthropicDefaultModel = "claude-3-5-sonnet-latest"
	anthropicVersion      = "2023-06-01"
	anthropicMaxTokens    = 4096
)

// Anthropic работает с messages API; ответ приходит массивом частей,
// текстовые части склеиваются
type Anthropic struct {
	cfg ProviderConfig
}

func NewAnthropic(cfg ProviderConfig) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	return &Anthropic{cfg: cfg}
}

func (p *Anthropic) Name() string     { return "anthropic" }
func (p *Anthropic) Configured() bool { return p.cfg.APIKey != "" }

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Anthropic) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicMaxTokens
	}
	body := anthropicRequest{
		Model:       p.cfg.Model,
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: userPrompt}},
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	}

	var resp anthropicResponse
	err := postJSON(ctx, p.cfg.client(), p.cfg.baseURL(anthropicDefaultURL)+"/v1/messages",
		map[string]string{"x-api-key": p.cfg.APIKey, "anthropic-version": anthropicVersion}, body, &resp)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, part := range resp.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyResult)
	}
	return sb.String(), nil
}
