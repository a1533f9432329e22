package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewynk/mail-backend/internal/model"
)

func TestEmailLogRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &EmailLogRepository{DB: db}

	mock.ExpectExec("INSERT INTO email_logs").
		WithArgs(sqlmock.AnyArg(), "c1", "a", "a@example.com", model.EmailFailed,
			sql.NullString{String: "smtp 550", Valid: true}, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	l := &model.EmailLog{CampaignID: "c1", ContactID: "a", Email: "a@example.com", Status: model.EmailFailed, Error: "smtp 550"}
	require.NoError(t, repo.Create(context.Background(), l))
	assert.NotEmpty(t, l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailLogRepository_CountByStatus(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &EmailLogRepository{DB: db}

	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("SENT", 4))

	stats, err := repo.CountByStatus(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats["SENT"])
	assert.Equal(t, 0, stats["FAILED"])
}
