package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
)

func intPtr(i int) *int {
	return &i
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}

type entryRepoStub struct {
	entries []*models.PlanEntry
	seq     int
}

func (r *entryRepoStub) List(_ context.Context, _ models.EntryFilter) ([]models.PlanEntry, int, error) {
	out := make([]models.PlanEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (r *entryRepoStub) FindByID(_ context.Context, id string) (*models.PlanEntry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *entryRepoStub) ListByTermWeek(_ context.Context, term, week int) ([]models.PlanEntry, error) {
	var out []models.PlanEntry
	for _, e := range r.entries {
		if e.Term == term && e.Week == week {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *entryRepoStub) Create(_ context.Context, entry *models.PlanEntry) error {
	r.seq++
	entry.ID = fmt.Sprintf("e%d", r.seq)
	stored := *entry
	r.entries = append(r.entries, &stored)
	return nil
}

func (r *entryRepoStub) Update(_ context.Context, entry *models.PlanEntry) error {
	for i, e := range r.entries {
		if e.ID == entry.ID {
			stored := *entry
			r.entries[i] = &stored
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *entryRepoStub) UpdateDecision(_ context.Context, id string, status models.ApprovalStatus, approverID string, comments *string) error {
	for _, e := range r.entries {
		if e.ID == id {
			e.Status = status
			e.ApproverID = &approverID
			e.Comments = comments
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *entryRepoStub) SetLinkedEvent(_ context.Context, id string, linkedEventID *string) error {
	for _, e := range r.entries {
		if e.ID == id {
			e.LinkedEventID = linkedEventID
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *entryRepoStub) Delete(_ context.Context, id string) error {
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type userDirStub struct {
	users map[string]*models.User
}

func (r *userDirStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type entryFixture struct {
	svc      *EntryService
	entries  *entryRepoStub
	bookings *bookingRepoStub
	users    *userDirStub
	cal      *models.AcademicCalendar
}

func newEntryFixture(t *testing.T) *entryFixture {
	t.Helper()
	cal := testCalendar(t)
	entries := &entryRepoStub{}
	bookings := &bookingRepoStub{}
	users := &userDirStub{users: map[string]*models.User{}}
	sync := NewLinkedEventSynchronizer(bookings, entries, nil, nil)
	svc := NewEntryService(entries, users, cal, nil, sync, nil, nil, nil, nil, nil)
	return &entryFixture{svc: svc, entries: entries, bookings: bookings, users: users, cal: cal}
}

func summaryEntry(id, teacherID, classID, subjectID string) models.PlanEntry {
	return models.PlanEntry{
		ID:        id,
		Kind:      models.EntryKindSummary,
		Term:      1,
		Week:      2,
		Grade:     "X",
		ClassID:   classID,
		SubjectID: subjectID,
		TeacherID: teacherID,
		Topic:     "Fractions",
		Status:    models.ApprovalStatusDraft,
	}
}

func TestEntryValidateExcludesSelf(t *testing.T) {
	f := newEntryFixture(t)

	candidate := summaryEntry("e1", "t1", "c1", "s1")
	existing := []models.PlanEntry{candidate}

	assert.Nil(t, f.svc.Validate(candidate, existing))
}

func TestEntryValidateClassSubjectTaken(t *testing.T) {
	f := newEntryFixture(t)

	existing := []models.PlanEntry{summaryEntry("e1", "t2", "c1", "s1")}
	conflict := f.svc.Validate(summaryEntry("", "t1", "c1", "s1"), existing)
	require.NotNil(t, conflict)
	assert.Equal(t, models.EntryRuleClassSubjectTaken, conflict.Rule)

	assert.Nil(t, f.svc.Validate(summaryEntry("", "t1", "c1", "s2"), existing))
	assert.Nil(t, f.svc.Validate(summaryEntry("", "t1", "c2", "s1"), existing))

	// The per-week uniqueness is scoped to the kind: a support session
	// for the same class/subject coexists with the summary.
	support := summaryEntry("", "t1", "c1", "s1")
	support.Kind = models.EntryKindSupport
	assert.Nil(t, f.svc.Validate(support, existing))
}

func TestEntryValidateDayAndSlotRulesCrossKinds(t *testing.T) {
	f := newEntryFixture(t)
	day := time.Date(2026, time.August, 26, 0, 0, 0, 0, f.cal.Location)

	summary := summaryEntry("e1", "t1", "c1", "s1")
	summary.SubEventDate = timePtr(day)
	summary.SubEventPeriod = intPtr(3)
	existing := []models.PlanEntry{summary}

	// Same teacher, same slot, different class and kind: the teacher
	// cannot run a quiz and a support session at once.
	slotClash := summaryEntry("", "t1", "c2", "s2")
	slotClash.Kind = models.EntryKindSupport
	slotClash.SubEventDate = timePtr(day)
	slotClash.SubEventPeriod = intPtr(3)
	conflict := f.svc.Validate(slotClash, existing)
	require.NotNil(t, conflict)
	assert.Equal(t, models.EntryRuleTeacherSlotTaken, conflict.Rule)

	// Same class, same day, different teacher and kind: the class
	// already carries its one sub-event for the day.
	dayClash := summaryEntry("", "t2", "c1", "s2")
	dayClash.Kind = models.EntryKindSupport
	dayClash.SubEventDate = timePtr(day)
	dayClash.SubEventPeriod = intPtr(6)
	conflict = f.svc.Validate(dayClash, existing)
	require.NotNil(t, conflict)
	assert.Equal(t, models.EntryRuleClassDayTaken, conflict.Rule)
}

func TestEntryValidateClassDayTaken(t *testing.T) {
	f := newEntryFixture(t)
	day := time.Date(2026, time.August, 26, 0, 0, 0, 0, f.cal.Location)

	other := summaryEntry("e1", "t2", "c1", "s1")
	other.SubEventDate = timePtr(day)
	other.SubEventPeriod = intPtr(2)

	candidate := summaryEntry("", "t1", "c1", "s2")
	candidate.SubEventDate = timePtr(day)
	candidate.SubEventPeriod = intPtr(5)

	conflict := f.svc.Validate(candidate, []models.PlanEntry{other})
	require.NotNil(t, conflict)
	assert.Equal(t, models.EntryRuleClassDayTaken, conflict.Rule)

	// No sub-event on the candidate, no day collision.
	candidate.SubEventDate = nil
	assert.Nil(t, f.svc.Validate(candidate, []models.PlanEntry{other}))
}

func TestEntryValidateTeacherSlotTakenAcrossClasses(t *testing.T) {
	f := newEntryFixture(t)
	day := time.Date(2026, time.August, 26, 0, 0, 0, 0, f.cal.Location)

	other := summaryEntry("e1", "t1", "c1", "s1")
	other.SubEventDate = timePtr(day)
	other.SubEventPeriod = intPtr(3)

	candidate := summaryEntry("", "t1", "c2", "s2")
	candidate.SubEventDate = timePtr(day)
	candidate.SubEventPeriod = intPtr(3)

	conflict := f.svc.Validate(candidate, []models.PlanEntry{other})
	require.NotNil(t, conflict)
	assert.Equal(t, models.EntryRuleTeacherSlotTaken, conflict.Rule)

	// A different period the same day is fine across classes.
	candidate.SubEventPeriod = intPtr(4)
	assert.Nil(t, f.svc.Validate(candidate, []models.PlanEntry{other}))
}

func TestEntryValidateFirstRuleWins(t *testing.T) {
	f := newEntryFixture(t)
	day := time.Date(2026, time.August, 26, 0, 0, 0, 0, f.cal.Location)

	// Same class, subject, day and slot: every rule matches, the
	// class/subject rule is reported.
	other := summaryEntry("e1", "t1", "c1", "s1")
	other.SubEventDate = timePtr(day)
	other.SubEventPeriod = intPtr(3)

	candidate := summaryEntry("", "t1", "c1", "s1")
	candidate.SubEventDate = timePtr(day)
	candidate.SubEventPeriod = intPtr(3)

	conflict := f.svc.Validate(candidate, []models.PlanEntry{other})
	require.NotNil(t, conflict)
	assert.Equal(t, models.EntryRuleClassSubjectTaken, conflict.Rule)
}

func TestEntryCreate(t *testing.T) {
	f := newEntryFixture(t)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	entry, err := f.svc.Create(context.Background(), models.EntryKindSummary, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c1",
		SubjectID:      "s1",
		Topic:          "Fractions",
		SubEventDate:   strPtr("2026-08-26"),
		SubEventPeriod: intPtr(3),
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusDraft, entry.Status)
	assert.Equal(t, "t1", entry.TeacherID)
	assert.Equal(t, models.EntryKindSummary, entry.Kind)
	assert.False(t, entry.WeekStart.IsZero())
	assert.True(t, entry.WeekEnd.After(entry.WeekStart))
	require.NotNil(t, entry.SubEventDate)
	assert.Nil(t, entry.LinkedEventID)
}

func TestEntryCreateConflict(t *testing.T) {
	f := newEntryFixture(t)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	req := CreateEntryRequest{Term: 1, Week: 2, Grade: "X", ClassID: "c1", SubjectID: "s1", Topic: "Fractions"}
	_, err := f.svc.Create(context.Background(), models.EntryKindSummary, req, actor)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), models.EntryKindSummary, req, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// Kinds validate independently; a support entry for the same
	// class/subject/week does not collide with the summary.
	_, err = f.svc.Create(context.Background(), models.EntryKindSupport, req, actor)
	require.NoError(t, err)
}

func TestEntryCreateTeacherSlotConflictAcrossKinds(t *testing.T) {
	f := newEntryFixture(t)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	_, err := f.svc.Create(context.Background(), models.EntryKindSummary, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c1",
		SubjectID:      "s1",
		Topic:          "Fractions",
		SubEventDate:   strPtr("2026-08-26"),
		SubEventPeriod: intPtr(3),
	}, actor)
	require.NoError(t, err)

	// The same teacher booking a support session for another class at
	// the same date and period must be rejected.
	_, err = f.svc.Create(context.Background(), models.EntryKindSupport, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c2",
		SubjectID:      "s2",
		Topic:          "Remedial",
		SubEventDate:   strPtr("2026-08-26"),
		SubEventPeriod: intPtr(3),
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEntryCreateClassDayConflictAcrossKinds(t *testing.T) {
	f := newEntryFixture(t)
	first := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	second := &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}

	_, err := f.svc.Create(context.Background(), models.EntryKindSummary, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c1",
		SubjectID:      "s1",
		Topic:          "Fractions",
		SubEventDate:   strPtr("2026-08-26"),
		SubEventPeriod: intPtr(3),
	}, first)
	require.NoError(t, err)

	// One sub-event per class per day holds across kinds: the class
	// that already sits a summary quiz cannot take a support session
	// the same day.
	_, err = f.svc.Create(context.Background(), models.EntryKindSupport, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c1",
		SubjectID:      "s2",
		Topic:          "Remedial",
		SubEventDate:   strPtr("2026-08-26"),
		SubEventPeriod: intPtr(6),
	}, second)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEntryCreateSubEventPeriodOutOfBounds(t *testing.T) {
	f := newEntryFixture(t)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	// 2026-08-28 is a Friday with only four periods.
	_, err := f.svc.Create(context.Background(), models.EntryKindSummary, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c1",
		SubjectID:      "s1",
		Topic:          "Fractions",
		SubEventDate:   strPtr("2026-08-28"),
		SubEventPeriod: intPtr(5),
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEntrySubmitSelfApproves(t *testing.T) {
	f := newEntryFixture(t)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	created, err := f.svc.Create(context.Background(), models.EntryKindSummary, CreateEntryRequest{
		Term: 1, Week: 2, Grade: "X", ClassID: "c1", SubjectID: "s1", Topic: "Fractions",
	}, actor)
	require.NoError(t, err)

	entry, err := f.svc.Submit(context.Background(), created.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, entry.Status)
	require.NotNil(t, entry.ApproverID)
	assert.Equal(t, "t1", *entry.ApproverID)

	other := &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}
	_, err = f.svc.Submit(context.Background(), created.ID, other)
	require.Error(t, err)
}

func TestEntryApproveMaterializesLinkedBooking(t *testing.T) {
	f := newEntryFixture(t)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	created, err := f.svc.Create(context.Background(), models.EntryKindSummary, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c1",
		SubjectID:      "s1",
		Topic:          "Fractions",
		SubEventDate:   strPtr("2026-08-26"),
		SubEventPeriod: intPtr(3),
	}, owner)
	require.NoError(t, err)

	entry, err := f.svc.Approve(context.Background(), created.ID, DecisionRequest{Comments: strPtr("ok")}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, entry.Status)
	require.NotNil(t, entry.LinkedEventID)

	booking, err := f.bookings.FindByID(context.Background(), *entry.LinkedEventID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingKindQuiz, booking.Kind)
	assert.Equal(t, models.BookingStatusScheduled, booking.Status)
	assert.Equal(t, 3, booking.Period)
	assert.Equal(t, "c1", booking.ClassID)
	assert.Equal(t, "t1", booking.TeacherID)
}

func TestEntryApproveSupportCreatesNoBooking(t *testing.T) {
	f := newEntryFixture(t)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	created, err := f.svc.Create(context.Background(), models.EntryKindSupport, CreateEntryRequest{
		Term:           1,
		Week:           2,
		Grade:          "X",
		ClassID:        "c1",
		SubjectID:      "s1",
		Topic:          "Remedial",
		SubEventDate:   strPtr("2026-08-26"),
		SubEventPeriod: intPtr(3),
	}, owner)
	require.NoError(t, err)

	entry, err := f.svc.Approve(context.Background(), created.ID, DecisionRequest{}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, entry.Status)
	assert.Nil(t, entry.LinkedEventID)
	assert.Empty(t, f.bookings.bookings)
}

func TestEntryApproveWithoutPeriodSkipsBooking(t *testing.T) {
	f := newEntryFixture(t)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	// A sub-event date without a period cannot be placed on the
	// agenda, so approval succeeds but no booking is created.
	created, err := f.svc.Create(context.Background(), models.EntryKindSummary, CreateEntryRequest{
		Term:         1,
		Week:         2,
		Grade:        "X",
		ClassID:      "c1",
		SubjectID:    "s1",
		Topic:        "Fractions",
		SubEventDate: strPtr("2026-08-26"),
	}, owner)
	require.NoError(t, err)

	entry, err := f.svc.Approve(context.Background(), created.ID, DecisionRequest{}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, entry.Status)
	assert.Nil(t, entry.LinkedEventID)
	assert.Empty(t, f.bookings.bookings)
}

func TestEntryRejectCancelsLinkedBooking(t *testing.T) {
	f := newEntryFixture(t)
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}
	day := time.Date(2026, time.August, 26, 0, 0, 0, 0, f.cal.Location)

	booking := scheduledBooking("", day, 3, models.BookingKindQuiz)
	require.NoError(t, f.bookings.Create(context.Background(), &booking))

	entry := summaryEntry("e1", "t1", "c1", "s1")
	entry.Status = models.ApprovalStatusPending
	entry.SubEventDate = timePtr(day)
	entry.SubEventPeriod = intPtr(3)
	entry.LinkedEventID = &booking.ID
	f.entries.entries = append(f.entries.entries, &entry)

	rejected, err := f.svc.Reject(context.Background(), "e1", DecisionRequest{Comments: strPtr("redo")}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejected, rejected.Status)
	assert.Nil(t, rejected.LinkedEventID)

	stored, err := f.bookings.FindByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)
}

func TestEntryUpdateRequeuesApproved(t *testing.T) {
	f := newEntryFixture(t)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	entry := summaryEntry("e1", "t1", "c1", "s1")
	entry.Status = models.ApprovalStatusApproved
	f.entries.entries = append(f.entries.entries, &entry)

	topic := "Decimals"
	updated, err := f.svc.Update(context.Background(), "e1", UpdateEntryRequest{Topic: &topic}, owner)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, updated.Status)
	assert.Equal(t, "Decimals", updated.Topic)
}

func TestEntryUpdateByAdminKeepsStatus(t *testing.T) {
	f := newEntryFixture(t)
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	entry := summaryEntry("e1", "t1", "c1", "s1")
	entry.Status = models.ApprovalStatusApproved
	f.entries.entries = append(f.entries.entries, &entry)

	topic := "Decimals"
	updated, err := f.svc.Update(context.Background(), "e1", UpdateEntryRequest{Topic: &topic}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, updated.Status)
}

func TestEntryUpdatePeriodOnlyCheckedAgainstStoredDate(t *testing.T) {
	f := newEntryFixture(t)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	// 2026-08-28 is a Friday with only four periods.
	friday := time.Date(2026, time.August, 28, 0, 0, 0, 0, f.cal.Location)
	entry := summaryEntry("e1", "t1", "c1", "s1")
	entry.SubEventDate = timePtr(friday)
	entry.SubEventPeriod = intPtr(3)
	f.entries.entries = append(f.entries.entries, &entry)

	// Patching the period alone must still respect the stored date's
	// bell schedule.
	_, err := f.svc.Update(context.Background(), "e1", UpdateEntryRequest{SubEventPeriod: intPtr(5)}, owner)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	updated, err := f.svc.Update(context.Background(), "e1", UpdateEntryRequest{SubEventPeriod: intPtr(4)}, owner)
	require.NoError(t, err)
	require.NotNil(t, updated.SubEventPeriod)
	assert.Equal(t, 4, *updated.SubEventPeriod)
}

func TestEntryUpdateConflictWithOtherEntry(t *testing.T) {
	f := newEntryFixture(t)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	first := summaryEntry("e1", "t1", "c1", "s1")
	second := summaryEntry("e2", "t1", "c1", "s2")
	f.entries.entries = append(f.entries.entries, &first, &second)

	subject := "s1"
	_, err := f.svc.Update(context.Background(), "e2", UpdateEntryRequest{SubjectID: &subject}, owner)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// An update that keeps its own slot never collides with itself.
	topic := "Algebra"
	_, err = f.svc.Update(context.Background(), "e2", UpdateEntryRequest{Topic: &topic}, owner)
	require.NoError(t, err)
}

func TestEntryDecideLeadDepartmentScope(t *testing.T) {
	f := newEntryFixture(t)
	f.users.users["t1"] = &models.User{ID: "t1", Role: models.RoleTeacher, Department: strPtr("MATH")}

	entry := summaryEntry("e1", "t1", "c1", "s1")
	entry.Status = models.ApprovalStatusPending
	f.entries.entries = append(f.entries.entries, &entry)

	outsider := &models.JWTClaims{UserID: "l1", Role: models.RoleLead, Department: strPtr("SCIENCE")}
	_, err := f.svc.Approve(context.Background(), "e1", DecisionRequest{}, outsider)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	lead := &models.JWTClaims{UserID: "l2", Role: models.RoleLead, Department: strPtr("MATH")}
	approved, err := f.svc.Approve(context.Background(), "e1", DecisionRequest{}, lead)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, approved.Status)
}

func TestEntryDecideLeadMissingOwnerFailsClosed(t *testing.T) {
	f := newEntryFixture(t)

	entry := summaryEntry("e1", "ghost", "c1", "s1")
	entry.Status = models.ApprovalStatusPending
	f.entries.entries = append(f.entries.entries, &entry)

	lead := &models.JWTClaims{UserID: "l1", Role: models.RoleLead, Department: strPtr("MATH")}
	_, err := f.svc.Approve(context.Background(), "e1", DecisionRequest{}, lead)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEntryDeleteCancelsLinkedBooking(t *testing.T) {
	f := newEntryFixture(t)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	day := time.Date(2026, time.August, 26, 0, 0, 0, 0, f.cal.Location)

	booking := scheduledBooking("", day, 3, models.BookingKindQuiz)
	require.NoError(t, f.bookings.Create(context.Background(), &booking))

	entry := summaryEntry("e1", "t1", "c1", "s1")
	entry.Status = models.ApprovalStatusApproved
	entry.SubEventDate = timePtr(day)
	entry.SubEventPeriod = intPtr(3)
	entry.LinkedEventID = &booking.ID
	f.entries.entries = append(f.entries.entries, &entry)

	require.NoError(t, f.svc.Delete(context.Background(), "e1", owner))

	_, err := f.entries.FindByID(context.Background(), "e1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	stored, err := f.bookings.FindByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)
}

func TestEntryDeleteForbiddenForNonOwner(t *testing.T) {
	f := newEntryFixture(t)

	entry := summaryEntry("e1", "t1", "c1", "s1")
	f.entries.entries = append(f.entries.entries, &entry)

	other := &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}
	err := f.svc.Delete(context.Background(), "e1", other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
