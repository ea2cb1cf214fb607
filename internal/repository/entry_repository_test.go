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

var entryRows = []string{
	"id", "kind", "term", "week", "week_start", "week_end", "grade", "class_id", "subject_id",
	"teacher_id", "topic", "note", "sub_event_day", "sub_event_date", "sub_event_period",
	"status", "approver_id", "comments", "linked_event_id", "created_at", "updated_at",
}

func addEntryRow(rows *sqlmock.Rows, id string) *sqlmock.Rows {
	now := time.Now()
	weekStart := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 6)
	return rows.AddRow(id, string(models.EntryKindSummary), 1, 2, weekStart, weekEnd, "X", "c1", "s1",
		"t1", "Fractions", nil, nil, nil, nil,
		string(models.ApprovalStatusDraft), nil, nil, nil, now, now)
}

func TestEntryListByTermWeek(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	rows := addEntryRow(sqlmock.NewRows(entryRows), "e1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM plan_entries WHERE term = $1 AND week = $2")).
		WithArgs(1, 2).
		WillReturnRows(rows)

	entries, err := repo.ListByTermWeek(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, models.ApprovalStatusDraft, entries[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	rows := addEntryRow(sqlmock.NewRows(entryRows), "e1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM plan_entries WHERE 1=1 AND kind = $1 AND teacher_id = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(models.EntryKindSummary, "t1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM plan_entries WHERE 1=1 AND kind = $1 AND teacher_id = $2")).
		WithArgs(models.EntryKindSummary, "t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := repo.List(context.Background(), models.EntryFilter{Kind: models.EntryKindSummary, TeacherID: "t1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectExec("INSERT INTO plan_entries").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.PlanEntry{
		Kind:      models.EntryKindSummary,
		Term:      1,
		Week:      2,
		Grade:     "X",
		ClassID:   "c1",
		SubjectID: "s1",
		TeacherID: "t1",
		Topic:     "Fractions",
		Status:    models.ApprovalStatusDraft,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryUpdateDecision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	comments := "looks good"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE plan_entries SET status = $1, approver_id = $2, comments = $3, updated_at = $4 WHERE id = $5")).
		WithArgs(models.ApprovalStatusApproved, "a1", &comments, sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateDecision(context.Background(), "e1", models.ApprovalStatusApproved, "a1", &comments))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryUpdateDecisionMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE plan_entries SET status = $1, approver_id = $2, comments = $3, updated_at = $4 WHERE id = $5")).
		WithArgs(models.ApprovalStatusApproved, "a1", nil, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDecision(context.Background(), "missing", models.ApprovalStatusApproved, "a1", nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntrySetLinkedEvent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	bookingID := "b1"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE plan_entries SET linked_event_id = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(&bookingID, sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE plan_entries SET linked_event_id = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(nil, sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetLinkedEvent(context.Background(), "e1", &bookingID))
	require.NoError(t, repo.SetLinkedEvent(context.Background(), "e1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM plan_entries WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
