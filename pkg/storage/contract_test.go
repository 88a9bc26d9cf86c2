package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contractRowColumns = []string{"id", "user_id", "proposal_id", "title", "terms", "signed_by", "signed_at", "created_at"}

func TestSignContract(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("UPDATE contracts SET signed_by").
		WithArgs("Иван Петров", at, "c1", "u1").
		WillReturnRows(sqlmock.NewRows(contractRowColumns).AddRow("c1", "u1", "p1", "Договор", "…", "Иван Петров", at, at))

	c, err := db.SignContract(context.Background(), "u1", "c1", "Иван Петров", at)
	require.NoError(t, err)
	require.NotNil(t, c.SignedAt)
	assert.Equal(t, at, *c.SignedAt)
}

func TestSignContractTwice(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Now().UTC()
	mock.ExpectQuery("UPDATE contracts SET signed_by").WillReturnRows(sqlmock.NewRows(contractRowColumns))
	mock.ExpectQuery("FROM contracts WHERE id").
		WillReturnRows(sqlmock.NewRows(contractRowColumns).AddRow("c1", "u1", "p1", "Договор", "…", "Иван", at, at))

	_, err := db.SignContract(context.Background(), "u1", "c1", "Пётр", at)
	assert.ErrorIs(t, err, ErrAlreadySigned)
}

func TestSignContractMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("UPDATE contracts SET signed_by").WillReturnRows(sqlmock.NewRows(contractRowColumns))
	mock.ExpectQuery("FROM contracts WHERE id").WillReturnRows(sqlmock.NewRows(contractRowColumns))

	_, err := db.SignContract(context.Background(), "u1", "c1", "Пётр", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}
