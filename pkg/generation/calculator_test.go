package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propodocs/models"
)

func threeTiers(prices ...float64) []models.Tier {
	names := []string{"Starter", "Growth", "Enterprise"}
	tiers := make([]models.Tier, len(prices))
	for i, p := range prices {
		tiers[i] = models.Tier{ID: names[i], Name: names[i], MonthlyPrice: p}
	}
	return tiers
}

func TestValidateCalculatorMonotonicityViolation(t *testing.T) {
	s := models.CalculatorSchema{Name: "x", Layout: models.LayoutTiered, Tiers: threeTiers(5000, 4000, 9000)}

	issues := ValidateCalculator(s, nil)

	require.Len(t, issues, 1)
	assert.Equal(t, "tiers[1].monthlyPrice", issues[0].Field)
}

func TestValidateCalculatorValid(t *testing.T) {
	s := models.CalculatorSchema{
		Layout: models.LayoutHybrid,
		Tiers:  threeTiers(100, 200, 300),
		AddOns: []models.AddOn{
			{ID: "a1", Name: "Onboarding", Price: 500, Category: "setup"},
			{ID: "a2", Name: "SLA", Price: 90, Category: "Support"},
		},
	}

	assert.Empty(t, ValidateCalculator(s, []string{"Setup", "Support"}))
}

func TestValidateCalculatorCollectsIssues(t *testing.T) {
	s := models.CalculatorSchema{
		Layout: "grid",
		Tiers: []models.Tier{
			{ID: "t", Name: "A", MonthlyPrice: 100},
			{ID: "t", Name: "B", MonthlyPrice: 100},
		},
		AddOns: []models.AddOn{
			{ID: "x", Name: "One", Category: ""},
			{ID: "x", Name: "Two", Category: "Magic"},
		},
	}

	issues := ValidateCalculator(s, []string{"Setup"})

	fields := make([]string, 0, len(issues))
	for _, i := range issues {
		fields = append(fields, i.Field)
	}
	assert.ElementsMatch(t, []string{
		"layout",
		"tiers",
		"tiers[1].monthlyPrice",
		"tiers[1].id",
		"addOns[0].category",
		"addOns[1].category",
		"addOns[1].id",
	}, fields)
}

func TestDecodeCalculatorNormalizes(t *testing.T) {
	text := `{"calculator": {"name": "Web", "tiers": [{"name": "A", "monthlyPrice": 1}, {"name": "B", "monthlyPrice": 2}], "addOns": [{"name": "X", "price": 5, "category": " Setup "}]}}`

	s, err := decodeCalculator(text)

	require.NoError(t, err)
	assert.Equal(t, models.LayoutTiered, s.Layout)
	assert.Equal(t, "tier_1", s.Tiers[0].ID)
	assert.Equal(t, "tier_2", s.Tiers[1].ID)
	assert.Equal(t, "addon_1", s.AddOns[0].ID)
	assert.Equal(t, "Setup", s.AddOns[0].Category)
}

func TestDecodeCalculatorRejectsBadShapes(t *testing.T) {
	_, err := decodeCalculator(`{"tiers": [{"name": "A", "monthlyPrice": "cheap"}]}`)
	assert.Error(t, err)

	_, err = decodeCalculator(`[1, 2, 3]`)
	assert.Error(t, err)

	_, err = decodeCalculator(`{}`)
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = decodeCalculator(`{"tiers": []}`)
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestDecodeContent(t *testing.T) {
	blocks, err := decodeContent(`{"blocks": [{"type": "heading", "text": "Intro", "level": 1}, {"type": "video"}, {"type": "table", "rows": [["a", "b"]]}]}`)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, models.BlockHeading, blocks[0].Type)
	assert.Equal(t, [][]string{{"a", "b"}}, blocks[1].Rows)

	blocks, err = decodeContent(`[{"type": "paragraph", "text": "hi"}]`)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)

	_, err = decodeContent(`[]`)
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = decodeContent(`{"text": "oops"}`)
	assert.Error(t, err)
}
