package generation

import (
	"context"
	"fmt"
)

const (
	openAIDefaultURL   = "https://api.openai.com"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAI работает с chat completions; содержимое приходит строкой,
// часто обёрнутой в ```json
type OpenAI struct {
	cfg ProviderConfig
}

func NewOpenAI(cfg ProviderConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	return &OpenAI{cfg: cfg}
}

func (p *OpenAI) Name() string     { return "openai" }
func (p *OpenAI) Configured() bool { return p.cfg.APIKey != "" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float64           `json:"temperature,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	body := openAIRequest{
		Model: p.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var resp openAIResponse
	err := postJSON(ctx, p.cfg.client(), p.cfg.baseURL(openAIDefaultURL)+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}, body, &resp)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("openai: %w", ErrEmptyResult)
	}
	return *resp.Choices[0].Message.Content, nil
}
