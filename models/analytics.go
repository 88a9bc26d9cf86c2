package models

// ViewStats хранит сводные показатели просмотров
type ViewStats struct {
	TotalViews  int     `json:"total_views"`
	UniqueViews int     `json:"unique_views"`
	AvgDuration float64 `json:"avg_duration"`
	MaxDuration int     `json:"max_duration"`
}

// DateCount описывает точку временного ряда
type DateCount struct {
	Date  string `json:"date"` // YYYY-MM-DD в UTC
	Count int    `json:"count"`
}

// LabelCount описывает строку разбивки по категории
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AnalyticsSummary содержит итог агрегации по одному предложению
type AnalyticsSummary struct {
	ViewStats        ViewStats     `json:"viewStats"`
	ViewsOverTime    []DateCount   `json:"viewsOverTime"`
	DeviceBreakdown  []LabelCount  `json:"deviceBreakdown"`
	BrowserBreakdown []LabelCount  `json:"browserBreakdown"`
	HeatmapData      []Interaction `json:"heatmapData"`
	ScrollData       []Interaction `json:"scrollData"`
}

// SessionSummary описывает просмотр с количеством действий в нём
type SessionSummary struct {
	View
	InteractionCount int `json:"interaction_count"`
}

// PipelineBucket хранит количество и суммарную стоимость предложений в статусе
type PipelineBucket struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// PipelineSnapshot отражает воронку по всем неархивным предложениям пользователя
type PipelineSnapshot struct {
	Draft    PipelineBucket `json:"draft"`
	Sent     PipelineBucket `json:"sent"`
	Viewed   PipelineBucket `json:"viewed"`
	Accepted PipelineBucket `json:"accepted"`
	Rejected PipelineBucket `json:"rejected"`
	Total    float64        `json:"total"`
}
