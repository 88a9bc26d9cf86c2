package generation

import (
	"fmt"
	"strings"
)

const calculatorSystemPrompt = `You design pricing calculators for service proposals.
Respond with a single JSON object and nothing else:
{
  "name": string,
  "layout": "hybrid" | "tiered" | "itemized",
  "tiers": [{"id": string, "name": string, "description": string, "monthlyPrice": number, "features": [string]}],
  "addOns": [{"id": string, "name": string, "description": string, "price": number, "category": string, "recurring": boolean}],
  "columns": [{"id": string, "label": string, "type": string}]
}
Rules:
- exactly 3 tiers, each monthlyPrice strictly greater than the previous one;
- tier ids and add-on ids are unique;
- every add-on has a category from this list: %s.`

const contentSystemPrompt = `You write client-facing service proposals.
Respond with a JSON object {"blocks": [...]} where each block is one of:
{"type": "heading", "text": string, "level": 1-3}
{"type": "paragraph", "text": string}
{"type": "list-item", "text": string}
{"type": "table", "rows": [[string]]}
Do not wrap the JSON in markdown.`

const editSystemPrompt = `You edit one %s of a pricing calculator.
Apply the instruction to the JSON fragment and return the full updated fragment
as a single JSON object with the same fields. Do not add commentary.`

func calculatorPrompt(categories []string) string {
	list := "any short category name"
	if len(categories) > 0 {
		list = strings.Join(categories, ", ")
	}
	return fmt.Sprintf(calculatorSystemPrompt, list)
}

func editPrompt(kind BlockKind) string {
	return fmt.Sprintf(editSystemPrompt, kind)
}
