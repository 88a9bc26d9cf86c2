package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"propodocs/models"
)

// ComputePipeline раскладывает предложения по пяти статусам воронки.
// Предложение без суммы учитывается в количестве, но добавляет к стоимости 0.
// Неизвестные статусы в корзины не попадают и возвращаются вторым значением,
// чтобы вызывающий код мог их залогировать.
func ComputePipeline(proposals []models.ProposalValue) (models.PipelineSnapshot, []models.ProposalStatus) {
	var snap models.PipelineSnapshot
	buckets := map[models.ProposalStatus]*models.PipelineBucket{
		models.StatusDraft:    &snap.Draft,
		models.StatusSent:     &snap.Sent,
		models.StatusViewed:   &snap.Viewed,
		models.StatusAccepted: &snap.Accepted,
		models.StatusRejected: &snap.Rejected,
	}

	var unknown []models.ProposalStatus
	for _, p := range proposals {
		bucket, ok := buckets[p.Status]
		if !ok {
			unknown = append(unknown, p.Status)
			continue
		}
		amount := contribution(p.AnnualTotal)
		bucket.Count++
		bucket.Value += amount
		snap.Total += amount
	}
	return snap, unknown
}

func contribution(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0
	}
	return *v
}

// ExtractAnnualTotal достаёт totals.annualTotal из calculator_data.
// Путь одинаков для всех типов калькуляторов; это упрощение, а не гарантия формата.
// Значение может прийти числом или строкой с числом.
func ExtractAnnualTotal(calculatorData json.RawMessage) (float64, bool) {
	if len(calculatorData) == 0 {
		return 0, false
	}
	var doc struct {
		Totals struct {
			AnnualTotal json.RawMessage `json:"annualTotal"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(calculatorData, &doc); err != nil {
		return 0, false
	}
	raw := doc.Totals.AnnualTotal
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ProposalValueOf переводит статус и calculator_data в элемент воронки
func ProposalValueOf(status models.ProposalStatus, calculatorData json.RawMessage) models.ProposalValue {
	pv := models.ProposalValue{Status: status}
	if total, ok := ExtractAnnualTotal(calculatorData); ok {
		pv.AnnualTotal = &total
	}
	return pv
}
