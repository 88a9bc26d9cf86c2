package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args, err := selectQuery("id", "proposal_views",
		[]Filter{Eq("proposal_id", "p1"), Gte("viewed_at", since)}, "viewed_at", Page{Limit: 10, Offset: 20})

	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM proposal_views WHERE proposal_id = $1 AND viewed_at >= $2 ORDER BY viewed_at LIMIT $3 OFFSET $4", q)
	assert.Equal(t, []any{"p1", since, 10, 20}, args)
}

func TestSelectQueryRejectsOperator(t *testing.T) {
	_, _, err := selectQuery("id", "t", []Filter{{Column: "a", Op: "; DROP", Value: 1}}, "", Page{})
	assert.Error(t, err)
}

func TestSelectQueryWithoutFilters(t *testing.T) {
	q, args, err := selectQuery("id", "t", nil, "", Page{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM t", q)
	assert.Empty(t, args)
}
