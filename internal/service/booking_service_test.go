package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	"github.com/noah-isme/sma-agenda-api/pkg/config"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
)

func testCalendar(t *testing.T) *models.AcademicCalendar {
	t.Helper()
	cal, err := models.NewAcademicCalendar(config.CalendarConfig{
		Timezone:        "Asia/Jakarta",
		ShortWeekday:    "FRIDAY",
		ShortDayPeriods: 4,
		FullDayPeriods:  8,
		TermOneAnchor:   7,
		TermTwoAnchor:   11,
		TermThreeAnchor: 3,
		WeeksPerTerm:    15,
	})
	require.NoError(t, err)
	return cal
}

type bookingRepoStub struct {
	bookings []*models.Booking
	seq      int
	failList bool
}

func (r *bookingRepoStub) List(_ context.Context, _ models.BookingFilter) ([]models.Booking, int, error) {
	out := make([]models.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (r *bookingRepoStub) FindByID(_ context.Context, id string) (*models.Booking, error) {
	for _, b := range r.bookings {
		if b.ID == id {
			copied := *b
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *bookingRepoStub) ListByClassAndDate(_ context.Context, classID string, date time.Time) ([]models.Booking, error) {
	if r.failList {
		return nil, fmt.Errorf("stub list failure")
	}
	var out []models.Booking
	for _, b := range r.bookings {
		if b.ClassID == classID && sameDay(b.Date, date) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *bookingRepoStub) ListByClassBetween(_ context.Context, classID string, from, to time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.bookings {
		if b.ClassID == classID && !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *bookingRepoStub) Create(_ context.Context, booking *models.Booking) error {
	r.seq++
	booking.ID = fmt.Sprintf("b%d", r.seq)
	stored := *booking
	r.bookings = append(r.bookings, &stored)
	return nil
}

func (r *bookingRepoStub) Update(_ context.Context, booking *models.Booking) error {
	for i, b := range r.bookings {
		if b.ID == booking.ID {
			stored := *booking
			r.bookings[i] = &stored
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *bookingRepoStub) UpdateStatus(_ context.Context, id string, status models.BookingStatus) error {
	for _, b := range r.bookings {
		if b.ID == id {
			b.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func newBookingService(repo *bookingRepoStub, cal *models.AcademicCalendar) *BookingService {
	return NewBookingService(repo, cal, nil, nil, nil, nil, nil)
}

func scheduledBooking(id string, date time.Time, period int, kind models.BookingKind) models.Booking {
	return models.Booking{
		ID:        id,
		Date:      date,
		Period:    period,
		ClassID:   "c1",
		SubjectID: "s1",
		Kind:      kind,
		TeacherID: "t1",
		Status:    models.BookingStatusScheduled,
	}
}

func TestBookingValidatePeriodBound(t *testing.T) {
	cal := testCalendar(t)
	svc := newBookingService(&bookingRepoStub{}, cal)

	friday := time.Date(2026, time.August, 28, 0, 0, 0, 0, cal.Location)
	wednesday := time.Date(2026, time.August, 26, 0, 0, 0, 0, cal.Location)

	conflict := svc.Validate(scheduledBooking("", friday, 5, models.BookingKindHomework), nil)
	require.NotNil(t, conflict)
	assert.Equal(t, models.BookingRulePeriodBound, conflict.Rule)

	assert.Nil(t, svc.Validate(scheduledBooking("", friday, 4, models.BookingKindHomework), nil))
	assert.Nil(t, svc.Validate(scheduledBooking("", wednesday, 8, models.BookingKindHomework), nil))
}

func TestBookingValidateSlotTaken(t *testing.T) {
	cal := testCalendar(t)
	svc := newBookingService(&bookingRepoStub{}, cal)
	wednesday := time.Date(2026, time.August, 26, 0, 0, 0, 0, cal.Location)

	existing := []models.Booking{scheduledBooking("b1", wednesday, 3, models.BookingKindHomework)}

	conflict := svc.Validate(scheduledBooking("", wednesday, 3, models.BookingKindHomework), existing)
	require.NotNil(t, conflict)
	assert.Equal(t, models.BookingRuleSlotTaken, conflict.Rule)
	require.NotNil(t, conflict.Existing)
	assert.Equal(t, "b1", conflict.Existing.ID)

	assert.Nil(t, svc.Validate(scheduledBooking("", wednesday, 4, models.BookingKindHomework), existing))
}

func TestBookingValidateIgnoresCancelled(t *testing.T) {
	cal := testCalendar(t)
	svc := newBookingService(&bookingRepoStub{}, cal)
	wednesday := time.Date(2026, time.August, 26, 0, 0, 0, 0, cal.Location)

	cancelled := scheduledBooking("b1", wednesday, 3, models.BookingKindQuiz)
	cancelled.Status = models.BookingStatusCancelled

	assert.Nil(t, svc.Validate(scheduledBooking("", wednesday, 3, models.BookingKindQuiz), []models.Booking{cancelled}))
}

func TestBookingValidateQuizCap(t *testing.T) {
	cal := testCalendar(t)
	svc := newBookingService(&bookingRepoStub{}, cal)
	wednesday := time.Date(2026, time.August, 26, 0, 0, 0, 0, cal.Location)

	existing := []models.Booking{scheduledBooking("b1", wednesday, 2, models.BookingKindQuiz)}

	conflict := svc.Validate(scheduledBooking("", wednesday, 5, models.BookingKindQuiz), existing)
	require.NotNil(t, conflict)
	assert.Equal(t, models.BookingRuleQuizCap, conflict.Rule)

	// Homework is exempt from the quiz cap.
	assert.Nil(t, svc.Validate(scheduledBooking("", wednesday, 5, models.BookingKindHomework), existing))
}

func TestBookingValidateFirstRuleWins(t *testing.T) {
	cal := testCalendar(t)
	svc := newBookingService(&bookingRepoStub{}, cal)
	wednesday := time.Date(2026, time.August, 26, 0, 0, 0, 0, cal.Location)

	// A quiz candidate landing on an occupied quiz slot violates both
	// the slot rule and the quiz cap; the slot rule is reported.
	existing := []models.Booking{scheduledBooking("b1", wednesday, 3, models.BookingKindQuiz)}
	conflict := svc.Validate(scheduledBooking("", wednesday, 3, models.BookingKindQuiz), existing)
	require.NotNil(t, conflict)
	assert.Equal(t, models.BookingRuleSlotTaken, conflict.Rule)
}

func TestBookingCreate(t *testing.T) {
	cal := testCalendar(t)
	repo := &bookingRepoStub{}
	svc := newBookingService(repo, cal)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	booking, err := svc.Create(context.Background(), CreateBookingRequest{
		Date:      "2026-08-26",
		Period:    3,
		ClassID:   "c1",
		SubjectID: "s1",
		Kind:      "QUIZ",
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, "t1", booking.TeacherID)
	assert.Equal(t, models.BookingStatusScheduled, booking.Status)
	assert.Equal(t, models.BookingKindQuiz, booking.Kind)
	assert.NotEmpty(t, booking.ID)
}

func TestBookingCreateConflict(t *testing.T) {
	cal := testCalendar(t)
	repo := &bookingRepoStub{}
	svc := newBookingService(repo, cal)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	_, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 3, ClassID: "c1", SubjectID: "s1", Kind: "HOMEWORK",
	}, actor)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 3, ClassID: "c1", SubjectID: "s2", Kind: "HOMEWORK",
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingCreatePeriodBoundIsValidation(t *testing.T) {
	cal := testCalendar(t)
	svc := newBookingService(&bookingRepoStub{}, cal)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	// 2026-08-28 is a Friday with only four periods.
	_, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-28", Period: 5, ClassID: "c1", SubjectID: "s1", Kind: "HOMEWORK",
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingUpdateSkipsTimetableChecks(t *testing.T) {
	cal := testCalendar(t)
	repo := &bookingRepoStub{}
	svc := newBookingService(repo, cal)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	first, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 1, ClassID: "c1", SubjectID: "s1", Kind: "HOMEWORK",
	}, actor)
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 2, ClassID: "c1", SubjectID: "s2", Kind: "HOMEWORK",
	}, actor)
	require.NoError(t, err)

	// Moving the second booking onto the first one's slot succeeds;
	// edits are not re-validated against the timetable.
	period := first.Period
	updated, err := svc.Update(context.Background(), second.ID, UpdateBookingRequest{Period: &period}, actor)
	require.NoError(t, err)
	assert.Equal(t, first.Period, updated.Period)
}

func TestBookingUpdateForbiddenForNonOwner(t *testing.T) {
	cal := testCalendar(t)
	repo := &bookingRepoStub{}
	svc := newBookingService(repo, cal)
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	booking, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 1, ClassID: "c1", SubjectID: "s1", Kind: "HOMEWORK",
	}, owner)
	require.NoError(t, err)

	note := "tweak"
	other := &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}
	_, err = svc.Update(context.Background(), booking.ID, UpdateBookingRequest{Note: &note}, other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins may edit others' bookings.
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}
	_, err = svc.Update(context.Background(), booking.ID, UpdateBookingRequest{Note: &note}, admin)
	require.NoError(t, err)
}

func TestBookingCancel(t *testing.T) {
	cal := testCalendar(t)
	repo := &bookingRepoStub{}
	svc := newBookingService(repo, cal)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	booking, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 1, ClassID: "c1", SubjectID: "s1", Kind: "HOMEWORK",
	}, actor)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), booking.ID, actor))

	stored, err := repo.FindByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)

	err = svc.Cancel(context.Background(), booking.ID, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingCancelFreesSlot(t *testing.T) {
	cal := testCalendar(t)
	repo := &bookingRepoStub{}
	svc := newBookingService(repo, cal)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	booking, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 1, ClassID: "c1", SubjectID: "s1", Kind: "HOMEWORK",
	}, actor)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), booking.ID, actor))

	_, err = svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 1, ClassID: "c1", SubjectID: "s2", Kind: "HOMEWORK",
	}, actor)
	require.NoError(t, err)
}

type cacheRepoStub struct {
	data map[string][]byte
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{data: map[string][]byte{}}
}

func (r *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := r.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *cacheRepoStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.data[key] = raw
	return nil
}

func (r *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	delete(r.data, pattern)
	return nil
}

func TestBookingClassAgendaCache(t *testing.T) {
	cal := testCalendar(t)
	repo := &bookingRepoStub{}
	cache := NewCacheService(newCacheRepoStub(), nil, time.Minute, nil, true)
	svc := NewBookingService(repo, cal, cache, nil, nil, nil, nil)
	actor := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	booking, err := svc.Create(context.Background(), CreateBookingRequest{
		Date: "2026-08-26", Period: 1, ClassID: "c1", SubjectID: "s1", Kind: "HOMEWORK",
	}, actor)
	require.NoError(t, err)

	date := booking.Date
	agenda, hit, err := svc.ClassAgenda(context.Background(), "c1", date)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, agenda, 1)

	agenda, hit, err = svc.ClassAgenda(context.Background(), "c1", date)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, agenda, 1)

	// Cancelling invalidates the cached day.
	require.NoError(t, svc.Cancel(context.Background(), booking.ID, actor))
	_, hit, err = svc.ClassAgenda(context.Background(), "c1", date)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestBookingGetNotFound(t *testing.T) {
	cal := testCalendar(t)
	svc := newBookingService(&bookingRepoStub{}, cal)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
