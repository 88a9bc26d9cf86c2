package generation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BlockKind задаёт тип фрагмента схемы, который правит edit-block
type BlockKind string

const (
	BlockTier   BlockKind = "tier"
	BlockAddOn  BlockKind = "addon"
	BlockColumn BlockKind = "column"
)

// ErrInvalidBlock означает, что входной фрагмент нельзя редактировать
var ErrInvalidBlock = errors.New("generation: invalid block")

// Valid сообщает, поддерживается ли тип фрагмента
func (k BlockKind) Valid() bool {
	switch k {
	case BlockTier, BlockAddOn, BlockColumn:
		return true
	}
	return false
}

func blockID(block map[string]any) (any, error) {
	id, ok := block["id"]
	if !ok || id == nil {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidBlock)
	}
	if s, isStr := id.(string); isStr && s == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidBlock)
	}
	return id, nil
}

// decodeBlock разбирает отредактированный фрагмент.
// Допускается обёртка {"<kind>": {...}}.
func decodeBlock(kind BlockKind) func(string) (map[string]any, error) {
	return func(text string) (map[string]any, error) {
		var out map[string]any
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		if inner, ok := out[string(kind)].(map[string]any); ok && len(out) == 1 {
			out = inner
		}
		if len(out) == 0 {
			return nil, ErrEmptyResult
		}
		return out, nil
	}
}

// restoreID возвращает фрагменту исходный идентификатор.
// Бэкенды не обязаны его сохранять, поэтому он ставится всегда.
func restoreID(block map[string]any, id any) map[string]any {
	block["id"] = id
	return block
}
