package analytics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"propodocs/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestComputePipeline(t *testing.T) {
	proposals := []models.ProposalValue{
		{Status: models.StatusDraft, AnnualTotal: floatPtr(1000)},
		{Status: models.StatusDraft},
		{Status: models.StatusSent, AnnualTotal: floatPtr(2500)},
		{Status: models.StatusAccepted, AnnualTotal: floatPtr(12000)},
		{Status: models.StatusRejected, AnnualTotal: floatPtr(-5)},
		{Status: "archived", AnnualTotal: floatPtr(999)},
	}

	snap, unknown := ComputePipeline(proposals)

	assert.Equal(t, models.PipelineBucket{Count: 2, Value: 1000}, snap.Draft)
	assert.Equal(t, models.PipelineBucket{Count: 1, Value: 2500}, snap.Sent)
	assert.Equal(t, models.PipelineBucket{Count: 0, Value: 0}, snap.Viewed)
	assert.Equal(t, models.PipelineBucket{Count: 1, Value: 12000}, snap.Accepted)
	assert.Equal(t, models.PipelineBucket{Count: 1, Value: 0}, snap.Rejected)
	assert.Equal(t, 15500.0, snap.Total)
	assert.Equal(t, []models.ProposalStatus{"archived"}, unknown)

	counted := snap.Draft.Count + snap.Sent.Count + snap.Viewed.Count + snap.Accepted.Count + snap.Rejected.Count
	assert.Equal(t, len(proposals)-len(unknown), counted)
}

func TestComputePipelineEmpty(t *testing.T) {
	snap, unknown := ComputePipeline(nil)

	assert.Equal(t, models.PipelineSnapshot{}, snap)
	assert.Empty(t, unknown)
}

func TestExtractAnnualTotal(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"number", `{"totals":{"annualTotal":1200.5}}`, 1200.5, true},
		{"string", `{"totals":{"annualTotal":"3,600"}}`, 3600, true},
		{"missing totals", `{"tiers":[]}`, 0, false},
		{"null", `{"totals":{"annualTotal":null}}`, 0, false},
		{"garbage string", `{"totals":{"annualTotal":"n/a"}}`, 0, false},
		{"not json", `oops`, 0, false},
		{"empty", ``, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractAnnualTotal(json.RawMessage(tc.raw))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProposalValueOf(t *testing.T) {
	pv := ProposalValueOf(models.StatusSent, json.RawMessage(`{"totals":{"annualTotal":10}}`))
	if assert.NotNil(t, pv.AnnualTotal) {
		assert.Equal(t, 10.0, *pv.AnnualTotal)
	}

	pv = ProposalValueOf(models.StatusSent, nil)
	assert.Nil(t, pv.AnnualTotal)
}
