// Package convert строит договор и счёт из принятого предложения.
package convert

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"propodocs/models"
	"propodocs/pkg/analytics"
)

var (
	// ErrNotAccepted: конвертировать можно только принятое предложение
	ErrNotAccepted = errors.New("convert: proposal is not accepted")
	// ErrNoTotal: в calculator_data нет годовой суммы для счёта
	ErrNoTotal = errors.New("convert: proposal has no annual total")
	// ErrTotalTooLarge: годовая сумма не помещается в счёт
	ErrTotalTooLarge = errors.New("convert: annual total is too large")
)

// MaxAnnualTotal ограничивает сумму счёта в основных единицах валюты.
// Stripe принимает не больше 99 999 999.99 за позицию.
const MaxAnnualTotal = 99_999_999.99

// DefaultDueIn задаёт срок оплаты счёта по умолчанию
const DefaultDueIn = 14 * 24 * time.Hour

// Contract собирает неподписанный договор. Пустые terms заменяются стандартным текстом.
func Contract(p models.Proposal, terms string) (models.Contract, error) {
	if p.Status != models.StatusAccepted {
		return models.Contract{}, ErrNotAccepted
	}
	if strings.TrimSpace(terms) == "" {
		terms = defaultTerms(p)
	}
	return models.Contract{
		UserID:     p.UserID,
		ProposalID: p.ID,
		Title:      p.Title,
		Terms:      terms,
	}, nil
}

// Invoice собирает счёт на годовую сумму предложения.
// Сумма переводится в центы с округлением до ближайшего.
func Invoice(p models.Proposal, now time.Time) (models.Invoice, error) {
	if p.Status != models.StatusAccepted {
		return models.Invoice{}, ErrNotAccepted
	}
	total, ok := analytics.ExtractAnnualTotal(p.CalculatorData)
	if !ok || total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return models.Invoice{}, ErrNoTotal
	}
	if total > MaxAnnualTotal {
		return models.Invoice{}, ErrTotalTooLarge
	}
	due := now.Add(DefaultDueIn)
	proposalID := p.ID
	inv := models.Invoice{
		UserID:      p.UserID,
		ProposalID:  &proposalID,
		ClientName:  p.ClientName,
		ClientEmail: p.ClientEmail,
		Items: []models.LineItem{{
			Description: fmt.Sprintf("%s (annual)", p.Title),
			Quantity:    1,
			UnitAmount:  int64(math.Round(total * 100)),
		}},
		DueAt: &due,
	}
	inv.ComputeTotal()
	return inv, nil
}

func defaultTerms(p models.Proposal) string {
	client := p.ClientName
	if client == "" {
		client = "the Client"
	}
	return fmt.Sprintf("This agreement covers the services described in the proposal %q. "+
		"%s accepts the pricing and scope as presented and agrees to the payment schedule set out in the accompanying invoice.",
		p.Title, client)
}
