package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-agenda-api/internal/models"
)

var bookingRows = []string{"id", "date", "period", "class_id", "subject_id", "kind", "teacher_id", "status", "note", "created_at", "updated_at"}

func TestBookingListByClassAndDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now()
	date := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(bookingRows).
		AddRow("b1", date, 1, "c1", "s1", string(models.BookingKindHomework), "t1", string(models.BookingStatusScheduled), nil, now, now).
		AddRow("b2", date, 3, "c1", "s2", string(models.BookingKindQuiz), "t2", string(models.BookingStatusScheduled), nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, date, period, class_id, subject_id, kind, teacher_id, status, note, created_at, updated_at FROM bookings WHERE class_id = $1 AND date = $2 ORDER BY period ASC")).
		WithArgs("c1", date).
		WillReturnRows(rows)

	bookings, err := repo.ListByClassAndDate(context.Background(), "c1", date)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, models.BookingKindQuiz, bookings[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now()
	date := time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(bookingRows).
		AddRow("b1", date, 1, "c1", "s1", string(models.BookingKindQuiz), "t1", string(models.BookingStatusScheduled), nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, date, period, class_id, subject_id, kind, teacher_id, status, note, created_at, updated_at FROM bookings WHERE 1=1 AND class_id = $1 AND kind = $2 ORDER BY date ASC, period ASC LIMIT 20 OFFSET 0")).
		WithArgs("c1", models.BookingKindQuiz).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE 1=1 AND class_id = $1 AND kind = $2")).
		WithArgs("c1", models.BookingKindQuiz).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{ClassID: "c1", Kind: models.BookingKindQuiz})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))

	booking := &models.Booking{
		Date:      time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC),
		Period:    3,
		ClassID:   "c1",
		SubjectID: "s1",
		Kind:      models.BookingKindQuiz,
		TeacherID: "t1",
		Status:    models.BookingStatusScheduled,
	}
	require.NoError(t, repo.Create(context.Background(), booking))
	assert.NotEmpty(t, booking.ID)
	assert.False(t, booking.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.BookingStatusCancelled, sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "b1", models.BookingStatusCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.BookingStatusCancelled, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.BookingStatusCancelled)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
