package models

// ContentBlockType задаёт тип блока контента предложения
type ContentBlockType string

const (
	BlockHeading   ContentBlockType = "heading"
	BlockParagraph ContentBlockType = "paragraph"
	BlockListItem  ContentBlockType = "list-item"
	BlockTable     ContentBlockType = "table"
)

// ContentBlock описывает один блок контента
type ContentBlock struct {
	Type  ContentBlockType `json:"type"`
	Text  string           `json:"text,omitempty"`
	Level int              `json:"level,omitempty"` // уровень заголовка
	Rows  [][]string       `json:"rows,omitempty"`  // только для table
}
