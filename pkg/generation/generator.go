package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"propodocs/models"
)

// DefaultCategories используются, если в конфигурации категории дополнений не заданы
var DefaultCategories = []string{"Setup", "Support", "Training", "Integrations", "Reporting", "Other"}

// CalculatorResult содержит сгенерированную схему, провайдера и мягкие нарушения контракта
type CalculatorResult struct {
	Calculator models.CalculatorSchema `json:"calculator"`
	Provider   string                  `json:"provider"`
	Warnings   []ValidationIssue       `json:"warnings"`
}

// ContentResult содержит блоки контента предложения
type ContentResult struct {
	Blocks   []models.ContentBlock `json:"blocks"`
	Provider string                `json:"provider"`
}

// EditResult содержит отредактированный фрагмент схемы
type EditResult struct {
	Block    map[string]any `json:"block"`
	Provider string         `json:"provider"`
}

// Generator собирает промпты, прогоняет их через цепочку и проверяет результат
type Generator struct {
	chain      *Chain
	categories []string
	logger     *zap.Logger
}

func NewGenerator(chain *Chain, categories []string, logger *zap.Logger) *Generator {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{chain: chain, categories: categories, logger: logger}
}

// Categories возвращает набор допустимых категорий дополнений
func (g *Generator) Categories() []string { return g.categories }

// Calculator генерирует схему калькулятора по описанию на естественном языке.
// Нарушения контракта логируются и возвращаются как предупреждения.
func (g *Generator) Calculator(ctx context.Context, prompt string) (*CalculatorResult, error) {
	req := Request{
		System:  calculatorPrompt(g.categories),
		User:    prompt,
		Options: Options{Temperature: 0.4, JSON: true},
	}
	res, err := Run(ctx, g.chain, req, decodeCalculator)
	if err != nil {
		return nil, err
	}

	warnings := ValidateCalculator(res.Value, g.categories)
	if len(warnings) > 0 {
		msgs := make([]string, 0, len(warnings))
		for _, w := range warnings {
			msgs = append(msgs, w.String())
		}
		g.logger.Warn("сгенерированный калькулятор нарушает контракт схемы",
			zap.String("provider", res.Provider), zap.Strings("issues", msgs))
	}
	if warnings == nil {
		warnings = []ValidationIssue{}
	}
	return &CalculatorResult{Calculator: res.Value, Provider: res.Provider, Warnings: warnings}, nil
}

// ProposalContent генерирует блоки контента; калькулятор, если передан, попадает в промпт
func (g *Generator) ProposalContent(ctx context.Context, prompt string, calc *models.CalculatorSchema) (*ContentResult, error) {
	user := prompt
	if calc != nil {
		raw, err := json.Marshal(calc)
		if err != nil {
			return nil, fmt.Errorf("marshal calculator: %w", err)
		}
		user = prompt + "\n\nPricing calculator:\n" + string(raw)
	}
	req := Request{
		System:  contentSystemPrompt,
		User:    user,
		Options: Options{Temperature: 0.7, JSON: true},
	}
	res, err := Run(ctx, g.chain, req, decodeContent)
	if err != nil {
		return nil, err
	}
	return &ContentResult{Blocks: res.Value, Provider: res.Provider}, nil
}

// EditBlock правит один уровень, дополнение или колонку.
// Идентификатор фрагмента после генерации всегда восстанавливается из входа.
func (g *Generator) EditBlock(ctx context.Context, kind BlockKind, block map[string]any, instruction string) (*EditResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidBlock, kind)
	}
	id, err := blockID(block)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("%w: instruction is required", ErrInvalidBlock)
	}

	raw, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("marshal block: %w", err)
	}
	req := Request{
		System:  editPrompt(kind),
		User:    fmt.Sprintf("Fragment:\n%s\n\nInstruction: %s", raw, instruction),
		Options: Options{Temperature: 0.3, JSON: true},
	}
	res, err := Run(ctx, g.chain, req, decodeBlock(kind))
	if err != nil {
		return nil, err
	}
	return &EditResult{Block: restoreID(res.Value, id), Provider: res.Provider}, nil
}
