package generation

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// calculatorShape проверяет только форму ответа: типы полей и обязательные ключи.
// Количество уровней и порядок цен проверяет ValidateCalculator, это не повод
// отбрасывать ответ провайдера.
const calculatorShape = `{
  "type": "object",
  "required": ["tiers"],
  "properties": {
    "name": {"type": "string"},
    "layout": {"type": "string"},
    "tiers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "monthlyPrice"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "description": {"type": "string"},
          "monthlyPrice": {"type": "number"},
          "features": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "addOns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "price"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "price": {"type": "number"},
          "category": {"type": "string"}
        }
      }
    },
    "columns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["label"],
        "properties": {
          "id": {"type": "string"},
          "label": {"type": "string"}
        }
      }
    }
  }
}`

const contentShape = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type"],
    "properties": {
      "type": {"type": "string"},
      "text": {"type": "string"},
      "level": {"type": "integer"},
      "rows": {"type": "array", "items": {"type": "array", "items": {"type": "string"}}}
    }
  }
}`

var (
	calculatorSchema = mustCompileSchema("calculator", calculatorShape)
	contentSchema    = mustCompileSchema("content", contentShape)
)

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://propodocs.local/schemas/%s.schema.json", name)
	if err := c.AddResource(schemaURL, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}
	return compiled, nil
}

func mustCompileSchema(name, src string) *jsonschema.Schema {
	s, err := compileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}
