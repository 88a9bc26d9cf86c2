// Package analytics сворачивает сырые просмотры и действия посетителей
// в сводную статистику. Пакет не выполняет ввод-вывод: данные загружает вызывающий код.
package analytics

import (
	"sort"

	"propodocs/models"
)

const (
	dateLayout    = "2006-01-02"
	unknownDevice = "unknown"
)

// ComputeAnalytics строит сводку по всем просмотрам и действиям одного предложения.
// Просмотры обходятся один раз, каждое действие классифицируется один раз.
func ComputeAnalytics(views []models.View, interactions []models.Interaction) models.AnalyticsSummary {
	sessions := make(map[string]struct{}, len(views))
	byDate := make(map[string]int)
	devices := make(map[string]int)
	browsers := make(map[string]int)

	var totalDuration, maxDuration int
	for _, v := range views {
		sessions[v.SessionID] = struct{}{}

		d := duration(v)
		totalDuration += d
		if d > maxDuration {
			maxDuration = d
		}

		byDate[v.ViewedAt.UTC().Format(dateLayout)]++

		device := v.DeviceType
		if device == "" {
			device = unknownDevice
		}
		devices[device]++

		// Браузер без значения в разбивку не попадает
		if v.Browser != "" {
			browsers[v.Browser]++
		}
	}

	stats := models.ViewStats{
		TotalViews:  len(views),
		UniqueViews: len(sessions),
		MaxDuration: maxDuration,
	}
	if stats.TotalViews > 0 {
		stats.AvgDuration = float64(totalDuration) / float64(stats.TotalViews)
	}

	heatmap, scroll := partitionInteractions(interactions)

	return models.AnalyticsSummary{
		ViewStats:        stats,
		ViewsOverTime:    dateSeries(byDate),
		DeviceBreakdown:  breakdown(devices),
		BrowserBreakdown: breakdown(browsers),
		HeatmapData:      heatmap,
		ScrollData:       scroll,
	}
}

// ComputeSessions добавляет к каждому просмотру число действий в нём.
// Счётчики собираются одним проходом по действиям, а не запросом на каждый просмотр.
func ComputeSessions(views []models.View, interactions []models.Interaction) []models.SessionSummary {
	counts := make(map[string]int, len(views))
	for _, in := range interactions {
		counts[in.ViewID]++
	}

	sessions := make([]models.SessionSummary, 0, len(views))
	for _, v := range views {
		sessions = append(sessions, models.SessionSummary{View: v, InteractionCount: counts[v.ID]})
	}
	return sessions
}

// partitionInteractions раскладывает действия по корзинам тепловой карты и прокрутки.
// focus и неизвестные типы не попадают ни в одну из корзин.
func partitionInteractions(interactions []models.Interaction) (heatmap, scroll []models.Interaction) {
	heatmap = make([]models.Interaction, 0)
	scroll = make([]models.Interaction, 0)
	for _, in := range interactions {
		switch in.InteractionType {
		case models.InteractionClick, models.InteractionHover:
			heatmap = append(heatmap, in)
		case models.InteractionScroll:
			scroll = append(scroll, in)
		}
	}
	return heatmap, scroll
}

func duration(v models.View) int {
	if v.DurationSeconds == nil || *v.DurationSeconds < 0 {
		return 0
	}
	return *v.DurationSeconds
}

func dateSeries(byDate map[string]int) []models.DateCount {
	out := make([]models.DateCount, 0, len(byDate))
	for date, n := range byDate {
		out = append(out, models.DateCount{Date: date, Count: n})
	}
	// Формат YYYY-MM-DD сортируется лексикографически
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// breakdown выдаёт разбивку по убыванию количества, при равенстве по имени
func breakdown(counts map[string]int) []models.LabelCount {
	out := make([]models.LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, models.LabelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
