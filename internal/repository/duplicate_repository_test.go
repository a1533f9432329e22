package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/model"
)

func TestDuplicateRepository_ExistsUsesOrderedPair(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &DuplicateRepository{DB: db}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.Exists(context.Background(), "b", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &DuplicateRepository{DB: db}

	mock.ExpectExec("INSERT INTO contact_duplicates").
		WithArgs(sqlmock.AnyArg(), "u1", "a", "b", 90, sqlmock.AnyArg(), model.DuplicatePending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := &model.ContactDuplicate{UserID: "u1", ContactID1: "b", ContactID2: "a", Score: 90, MatchedFields: []string{"email"}}
	require.NoError(t, repo.Create(context.Background(), d))
	assert.Equal(t, "a", d.ContactID1)
	assert.Equal(t, model.DuplicatePending, d.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateRepository_UpdateStatus_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &DuplicateRepository{DB: db}

	mock.ExpectExec("UPDATE contact_duplicates").
		WithArgs(model.DuplicateIgnored, "d1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), "d1", model.DuplicateIgnored), appErrors.ErrDuplicateNotFound)
}
