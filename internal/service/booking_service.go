package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.Booking, error)
	ListByClassBetween(ctx context.Context, classID string, from, to time.Time) ([]models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	Update(ctx context.Context, booking *models.Booking) error
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateBookingRequest describes payload for booking a timetable slot.
type CreateBookingRequest struct {
	Date      string `json:"date" validate:"required"`
	Period    int    `json:"period" validate:"required,min=1"`
	ClassID   string `json:"class_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	Kind      string `json:"kind" validate:"required,oneof=HOMEWORK QUIZ"`
	Note      string `json:"note"`
}

// UpdateBookingRequest patches an existing booking. Scheduling fields
// are accepted but not re-validated against the timetable; see the
// conflict validator notes.
type UpdateBookingRequest struct {
	Date      *string `json:"date"`
	Period    *int    `json:"period" validate:"omitempty,min=1"`
	SubjectID *string `json:"subject_id"`
	Kind      *string `json:"kind" validate:"omitempty,oneof=HOMEWORK QUIZ"`
	Note      *string `json:"note"`
}

// BookingService admits bookings into the master timetable.
type BookingService struct {
	repo      bookingRepository
	calendar  *models.AcademicCalendar
	cache     *CacheService
	metrics   *MetricsService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService instantiates BookingService.
func NewBookingService(repo bookingRepository, calendar *models.AcademicCalendar, cache *CacheService, metrics *MetricsService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		calendar:  calendar,
		cache:     cache,
		metrics:   metrics,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// Validate runs the ordered admission checks against the candidate.
// The first failing rule wins and is the sole reported reason.
func (s *BookingService) Validate(candidate models.Booking, existing []models.Booking) *models.BookingConflictError {
	if conflict := bookingPeriodInBounds(s.calendar, candidate); conflict != nil {
		return conflict
	}
	if conflict := bookingSlotFree(candidate, existing); conflict != nil {
		return conflict
	}
	return bookingQuizCapFree(candidate, existing)
}

// bookingPeriodInBounds rejects periods past the day's bell schedule.
func bookingPeriodInBounds(cal *models.AcademicCalendar, candidate models.Booking) *models.BookingConflictError {
	if !cal.IsValidPeriod(candidate.Date, candidate.Period) {
		return &models.BookingConflictError{
			Rule:    models.BookingRulePeriodBound,
			Message: "period exceeds day's period count",
		}
	}
	return nil
}

// bookingSlotFree rejects a candidate whose (date, period, class) slot
// already holds a scheduled booking.
func bookingSlotFree(candidate models.Booking, existing []models.Booking) *models.BookingConflictError {
	for i := range existing {
		item := existing[i]
		if item.Status != models.BookingStatusScheduled {
			continue
		}
		if item.Period == candidate.Period {
			return &models.BookingConflictError{
				Rule:     models.BookingRuleSlotTaken,
				Message:  "slot already booked for this class",
				Existing: &item,
			}
		}
	}
	return nil
}

// bookingQuizCapFree enforces the one-quiz-per-class-per-day cap.
// Homework bookings are exempt.
func bookingQuizCapFree(candidate models.Booking, existing []models.Booking) *models.BookingConflictError {
	if candidate.Kind != models.BookingKindQuiz {
		return nil
	}
	for i := range existing {
		item := existing[i]
		if item.Status != models.BookingStatusScheduled || item.Kind != models.BookingKindQuiz {
			continue
		}
		return &models.BookingConflictError{
			Rule:     models.BookingRuleQuizCap,
			Message:  "class already has a quiz that day",
			Existing: &item,
		}
	}
	return nil
}

// List returns bookings with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return bookings, pagination, nil
}

// Get loads a single booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// ClassAgenda returns the class's bookings for one day, read through
// the agenda cache when enabled. The second return reports a cache hit.
func (s *BookingService) ClassAgenda(ctx context.Context, classID string, date time.Time) ([]models.Booking, bool, error) {
	key := agendaCacheKey(classID, date)
	var cached []models.Booking
	if s.cache.Enabled() {
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, true, nil
		}
	}

	bookings, err := s.repo.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class agenda")
	}
	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, bookings, 0)
	}
	return bookings, false, nil
}

// WeekAgenda returns the class's bookings for an academic week.
func (s *BookingService) WeekAgenda(ctx context.Context, classID string, term, week int, now time.Time) ([]models.Booking, error) {
	start, end, err := s.calendar.WeekBounds(term, week, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term or week")
	}
	bookings, err := s.repo.ListByClassBetween(ctx, classID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week agenda")
	}
	return bookings, nil
}

// Create validates and persists a new booking owned by the actor.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest, actor *models.JWTClaims) (*models.Booking, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	candidate := models.Booking{
		Date:      date,
		Period:    req.Period,
		ClassID:   req.ClassID,
		SubjectID: req.SubjectID,
		Kind:      models.BookingKind(strings.ToUpper(req.Kind)),
		TeacherID: actor.UserID,
		Status:    models.BookingStatusScheduled,
	}
	if req.Note != "" {
		candidate.Note = &req.Note
	}

	existing, err := s.repo.ListByClassAndDate(ctx, candidate.ClassID, candidate.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking conflicts")
	}

	if conflict := s.Validate(candidate, existing); conflict != nil {
		if s.metrics != nil {
			s.metrics.RecordBookingConflict(conflict.Rule)
		}
		if conflict.Rule == models.BookingRulePeriodBound {
			return nil, appErrors.Wrap(conflict, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, conflict.Message)
		}
		return nil, appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("booking conflict: %s", conflict.Message))
	}

	if err := s.repo.Create(ctx, &candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.invalidateAgenda(ctx, candidate.ClassID, candidate.Date)
	s.emitAudit(ctx, actor, models.AuditActionBookingCreate, candidate.ID, &candidate)
	return &candidate, nil
}

// Update patches a booking. Only its creator or an admin-level role may
// update; the timetable rules are not re-checked on update, matching
// the legacy behavior for edits.
func (s *BookingService) Update(ctx context.Context, id string, req UpdateBookingRequest, actor *models.JWTClaims) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	booking, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	previousDate := booking.Date

	if req.Date != nil {
		date, err := s.parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		booking.Date = date
	}
	if req.Period != nil {
		booking.Period = *req.Period
	}
	if req.SubjectID != nil {
		booking.SubjectID = *req.SubjectID
	}
	if req.Kind != nil {
		booking.Kind = models.BookingKind(strings.ToUpper(*req.Kind))
	}
	if req.Note != nil {
		booking.Note = req.Note
	}

	if err := s.repo.Update(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
	}

	s.invalidateAgenda(ctx, booking.ClassID, previousDate)
	s.invalidateAgenda(ctx, booking.ClassID, booking.Date)
	s.emitAudit(ctx, actor, models.AuditActionBookingUpdate, booking.ID, booking)
	return booking, nil
}

// Cancel transitions a booking to CANCELLED.
func (s *BookingService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) error {
	booking, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return err
	}
	if booking.Status == models.BookingStatusCancelled {
		return appErrors.Clone(appErrors.ErrConflict, "booking already cancelled")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.BookingStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	s.invalidateAgenda(ctx, booking.ClassID, booking.Date)
	s.emitAudit(ctx, actor, models.AuditActionBookingCancel, booking.ID, booking)
	return nil
}

func (s *BookingService) loadOwned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking.TeacherID != actor.UserID && actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the booking owner or an admin may modify it")
	}
	return booking, nil
}

func (s *BookingService) parseDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, raw, s.calendar.Location)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date, expected YYYY-MM-DD")
	}
	return date, nil
}

func (s *BookingService) invalidateAgenda(ctx context.Context, classID string, date time.Time) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, agendaCacheKey(classID, date)); err != nil {
		s.logger.Warn("failed to invalidate agenda cache", zap.String("class_id", classID), zap.Error(err))
	}
}

func (s *BookingService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	values, err := json.Marshal(payload)
	if err != nil {
		values = []byte("{}")
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "booking",
		ResourceID: &resourceID,
		NewValues:  values,
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record booking audit log", zap.Error(err))
	}
}

func agendaCacheKey(classID string, date time.Time) string {
	return fmt.Sprintf("agenda:class:%s:%s", classID, date.Format(DateLayout))
}
