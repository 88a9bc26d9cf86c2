package proposals

import "propodocs/models"

// transitions перечисляет допустимые переходы статуса, кроме возврата в черновик
var transitions = map[models.ProposalStatus][]models.ProposalStatus{
	models.StatusDraft:  {models.StatusSent},
	models.StatusSent:   {models.StatusViewed, models.StatusAccepted, models.StatusRejected},
	models.StatusViewed: {models.StatusAccepted, models.StatusRejected},
}

// CanTransition сообщает, можно ли перевести предложение из from в to.
// В черновик можно вернуть из любого статуса.
func CanTransition(from, to models.ProposalStatus) bool {
	if to == models.StatusDraft {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// KnownStatus проверяет, что статус входит в воронку
func KnownStatus(s models.ProposalStatus) bool {
	for _, known := range models.PipelineStatuses {
		if s == known {
			return true
		}
	}
	return false
}
