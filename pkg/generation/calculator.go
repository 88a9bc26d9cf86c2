package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"propodocs/models"
)

// ExpectedTiers задаёт число уровней в сгенерированном калькуляторе
const ExpectedTiers = 3

// ValidationIssue описывает мягкое нарушение контракта схемы
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationIssue) String() string { return v.Field + ": " + v.Message }

// decodeCalculator разбирает ответ модели в схему калькулятора.
// Допускается обёртка {"calculator": {...}}.
func decodeCalculator(text string) (models.CalculatorSchema, error) {
	var schema models.CalculatorSchema

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return schema, fmt.Errorf("invalid json: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return schema, fmt.Errorf("expected object, got %T", doc)
	}
	if inner, ok := obj["calculator"].(map[string]any); ok && len(obj) == 1 {
		obj = inner
	}
	if len(obj) == 0 {
		return schema, ErrEmptyResult
	}
	if err := calculatorSchema.Validate(obj); err != nil {
		return schema, fmt.Errorf("unexpected shape: %w", err)
	}

	normalized, err := json.Marshal(obj)
	if err != nil {
		return schema, err
	}
	if err := json.Unmarshal(normalized, &schema); err != nil {
		return schema, fmt.Errorf("decode calculator: %w", err)
	}
	if len(schema.Tiers) == 0 && len(schema.AddOns) == 0 {
		return schema, ErrEmptyResult
	}
	normalizeCalculator(&schema)
	return schema, nil
}

// normalizeCalculator проставляет отсутствующие идентификаторы и раскладку.
// Совпадающие идентификаторы не исправляются: это увидит валидация.
func normalizeCalculator(s *models.CalculatorSchema) {
	if s.Layout == "" {
		s.Layout = models.LayoutTiered
	}
	for i := range s.Tiers {
		if strings.TrimSpace(s.Tiers[i].ID) == "" {
			s.Tiers[i].ID = fmt.Sprintf("tier_%d", i+1)
		}
	}
	for i := range s.AddOns {
		if strings.TrimSpace(s.AddOns[i].ID) == "" {
			s.AddOns[i].ID = fmt.Sprintf("addon_%d", i+1)
		}
		s.AddOns[i].Category = strings.TrimSpace(s.AddOns[i].Category)
	}
	for i := range s.Columns {
		if strings.TrimSpace(s.Columns[i].ID) == "" {
			s.Columns[i].ID = fmt.Sprintf("col_%d", i+1)
		}
	}
}

// ValidateCalculator проверяет контракт схемы независимо от провайдера.
// Нарушения возвращаются списком и не исправляются.
func ValidateCalculator(s models.CalculatorSchema, categories []string) []ValidationIssue {
	var issues []ValidationIssue

	switch s.Layout {
	case models.LayoutHybrid, models.LayoutTiered, models.LayoutItemized:
	default:
		issues = append(issues, ValidationIssue{Field: "layout", Message: fmt.Sprintf("unknown layout %q", s.Layout)})
	}

	if len(s.Tiers) != ExpectedTiers {
		issues = append(issues, ValidationIssue{
			Field:   "tiers",
			Message: fmt.Sprintf("expected %d tiers, got %d", ExpectedTiers, len(s.Tiers)),
		})
	}
	for i := 1; i < len(s.Tiers); i++ {
		prev, cur := s.Tiers[i-1], s.Tiers[i]
		if cur.MonthlyPrice <= prev.MonthlyPrice {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("tiers[%d].monthlyPrice", i),
				Message: fmt.Sprintf("%s (%g) must be priced above %s (%g)",
					cur.Name, cur.MonthlyPrice, prev.Name, prev.MonthlyPrice),
			})
		}
	}
	issues = append(issues, duplicateIDs("tiers", len(s.Tiers), func(i int) string { return s.Tiers[i].ID })...)

	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	for i, a := range s.AddOns {
		field := fmt.Sprintf("addOns[%d].category", i)
		if a.Category == "" {
			issues = append(issues, ValidationIssue{Field: field, Message: "category is required"})
			continue
		}
		if len(known) == 0 {
			continue
		}
		if _, ok := known[strings.ToLower(a.Category)]; !ok {
			issues = append(issues, ValidationIssue{Field: field, Message: fmt.Sprintf("unknown category %q", a.Category)})
		}
	}
	issues = append(issues, duplicateIDs("addOns", len(s.AddOns), func(i int) string { return s.AddOns[i].ID })...)

	return issues
}

func duplicateIDs(list string, n int, id func(int) string) []ValidationIssue {
	var issues []ValidationIssue
	seen := make(map[string]int, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if first, ok := seen[v]; ok {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("%s[%d].id", list, i),
				Message: fmt.Sprintf("duplicate id %q (first used at %d)", v, first),
			})
			continue
		}
		seen[v] = i
	}
	return issues
}
