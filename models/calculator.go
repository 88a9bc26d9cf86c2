package models

// CalculatorLayout задаёт раскладку калькулятора цен
type CalculatorLayout string

const (
	LayoutHybrid   CalculatorLayout = "hybrid"
	LayoutTiered   CalculatorLayout = "tiered"
	LayoutItemized CalculatorLayout = "itemized"
)

// Tier описывает уровень тарифа (Starter/Growth/Enterprise)
type Tier struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	MonthlyPrice float64  `json:"monthlyPrice"`
	Features     []string `json:"features,omitempty"`
	Highlighted  bool     `json:"highlighted,omitempty"`
}

// AddOn описывает опциональную платную позицию
type AddOn struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Recurring   bool    `json:"recurring,omitempty"`
}

// Column описывает колонку таблицы калькулятора
type Column struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// CalculatorSchema представляет схему калькулятора, которую возвращает генерация
type CalculatorSchema struct {
	Name    string           `json:"name"`
	Layout  CalculatorLayout `json:"layout"`
	Tiers   []Tier           `json:"tiers"`
	AddOns  []AddOn          `json:"addOns"`
	Columns []Column         `json:"columns,omitempty"`
}
