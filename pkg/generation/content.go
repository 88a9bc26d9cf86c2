package generation

import (
	"encoding/json"
	"fmt"

	"propodocs/models"
)

// decodeContent принимает массив блоков или объект {"blocks": [...]}.
// Блоки неизвестного типа отбрасываются; если ничего не осталось, ответ пустой.
func decodeContent(text string) ([]models.ContentBlock, error) {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if obj, ok := doc.(map[string]any); ok {
		inner, ok := obj["blocks"]
		if !ok {
			return nil, fmt.Errorf("object without blocks field")
		}
		doc = inner
	}
	if err := contentSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("unexpected shape: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var decoded []models.ContentBlock
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}

	blocks := make([]models.ContentBlock, 0, len(decoded))
	for _, b := range decoded {
		switch b.Type {
		case models.BlockHeading, models.BlockParagraph, models.BlockListItem, models.BlockTable:
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return nil, ErrEmptyResult
	}
	return blocks, nil
}
