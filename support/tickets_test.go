package support

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestNewTicketValidation(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tk, err := NewTicket("u-1", "a@example.com", "  Billing  ", " charged twice ", now)
	require.NoError(t, err)
	assert.Len(t, tk.ID, 26)
	assert.Equal(t, "Billing", tk.Subject)
	assert.Equal(t, "charged twice", tk.Body)

	_, err = NewTicket("", "a@example.com", "s", "b", now)
	assert.ErrorIs(t, err, ErrInvalidTicket)
	_, err = NewTicket("u-1", "", " ", "b", now)
	assert.ErrorIs(t, err, ErrInvalidTicket)
	_, err = NewTicket("u-1", "", strings.Repeat("x", 201), "b", now)
	assert.ErrorIs(t, err, ErrInvalidTicket)
	_, err = NewTicket("u-1", "", "s", strings.Repeat("x", 5001), now)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestMemoryRepositoryNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tk, err := NewTicket("u-1", "", "s", "b", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), tk))
	}

	list, err := repo.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestGormRepositoryCreate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer sqlDB.Close()
	conn, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	tk, err := NewTicket("u-1", "a@example.com", "Help", "Cannot upload", time.Now())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `support_tickets`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, NewGormRepository(conn).Create(context.Background(), tk))
	assert.NoError(t, mock.ExpectationsWereMet())
}
