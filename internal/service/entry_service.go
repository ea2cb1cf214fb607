package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
)

type entryRepository interface {
	List(ctx context.Context, filter models.EntryFilter) ([]models.PlanEntry, int, error)
	FindByID(ctx context.Context, id string) (*models.PlanEntry, error)
	ListByTermWeek(ctx context.Context, term, week int) ([]models.PlanEntry, error)
	Create(ctx context.Context, entry *models.PlanEntry) error
	Update(ctx context.Context, entry *models.PlanEntry) error
	UpdateDecision(ctx context.Context, id string, status models.ApprovalStatus, approverID string, comments *string) error
	SetLinkedEvent(ctx context.Context, id string, linkedEventID *string) error
	Delete(ctx context.Context, id string) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateEntryRequest carries the payload for a new plan entry. The
// entry kind comes from the route, not the body.
type CreateEntryRequest struct {
	Term           int     `json:"term" validate:"required,min=1,max=3"`
	Week           int     `json:"week" validate:"required,min=1,max=15"`
	Grade          string  `json:"grade" validate:"required"`
	ClassID        string  `json:"class_id" validate:"required"`
	SubjectID      string  `json:"subject_id" validate:"required"`
	Topic          string  `json:"topic" validate:"required"`
	Note           *string `json:"note"`
	SubEventDay    *string `json:"sub_event_day"`
	SubEventDate   *string `json:"sub_event_date"`
	SubEventPeriod *int    `json:"sub_event_period" validate:"omitempty,min=1"`
}

// UpdateEntryRequest patches an entry. Nil fields are left untouched;
// the sub-event fields move together when any of them is present.
type UpdateEntryRequest struct {
	Term           *int    `json:"term" validate:"omitempty,min=1,max=3"`
	Week           *int    `json:"week" validate:"omitempty,min=1,max=15"`
	Grade          *string `json:"grade"`
	ClassID        *string `json:"class_id"`
	SubjectID      *string `json:"subject_id"`
	Topic          *string `json:"topic"`
	Note           *string `json:"note"`
	SubEventDay    *string `json:"sub_event_day"`
	SubEventDate   *string `json:"sub_event_date"`
	SubEventPeriod *int    `json:"sub_event_period" validate:"omitempty,min=1"`
}

// DecisionRequest carries reviewer comments for approve/reject.
type DecisionRequest struct {
	Comments *string `json:"comments"`
}

// EntryService owns the plan-entry lifecycle for both kinds: conflict
// validation on create and edit, the review workflow, and the side
// effects a decision triggers (linked booking sync, notification).
type EntryService struct {
	repo      entryRepository
	users     userDirectory
	calendar  *models.AcademicCalendar
	machine   *ApprovalMachine
	sync      *LinkedEventSynchronizer
	notifier  Notifier
	metrics   *MetricsService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEntryService instantiates EntryService.
func NewEntryService(repo entryRepository, users userDirectory, calendar *models.AcademicCalendar, machine *ApprovalMachine, sync *LinkedEventSynchronizer, notifier Notifier, metrics *MetricsService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *EntryService {
	if machine == nil {
		machine = NewApprovalMachine()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryService{
		repo:      repo,
		users:     users,
		calendar:  calendar,
		machine:   machine,
		sync:      sync,
		notifier:  notifier,
		metrics:   metrics,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// Validate runs the ordered admission checks against the candidate.
// The candidate's own prior record is excluded by id, so editing an
// entry never collides with itself. The first failing rule wins.
func (s *EntryService) Validate(candidate models.PlanEntry, existing []models.PlanEntry) *models.EntryConflictError {
	others := make([]models.PlanEntry, 0, len(existing))
	for i := range existing {
		if existing[i].ID == candidate.ID {
			continue
		}
		others = append(others, existing[i])
	}

	if conflict := entryClassSubjectFree(candidate, others); conflict != nil {
		return conflict
	}
	if conflict := entryClassDayFree(candidate, others); conflict != nil {
		return conflict
	}
	if conflict := entryOwnClassDayFree(candidate, others); conflict != nil {
		return conflict
	}
	return entryTeacherSlotFree(candidate, others)
}

// entryClassSubjectFree enforces one entry per (class, subject) per
// week within a kind. A summary and a support session for the same
// class/subject coexist; two summaries do not.
func entryClassSubjectFree(candidate models.PlanEntry, others []models.PlanEntry) *models.EntryConflictError {
	for i := range others {
		item := others[i]
		if item.Kind == candidate.Kind && item.ClassID == candidate.ClassID && item.SubjectID == candidate.SubjectID {
			return &models.EntryConflictError{
				Rule:     models.EntryRuleClassSubjectTaken,
				Message:  "entry already exists for this class/subject this week",
				Existing: &item,
			}
		}
	}
	return nil
}

// entryClassDayFree enforces the one-sub-event-per-class-per-day cap.
func entryClassDayFree(candidate models.PlanEntry, others []models.PlanEntry) *models.EntryConflictError {
	if candidate.SubEventDate == nil {
		return nil
	}
	for i := range others {
		item := others[i]
		if item.ClassID != candidate.ClassID || item.SubEventDate == nil {
			continue
		}
		if sameDay(*item.SubEventDate, *candidate.SubEventDate) {
			return &models.EntryConflictError{
				Rule:     models.EntryRuleClassDayTaken,
				Message:  "class already has a sub-event that day",
				Existing: &item,
			}
		}
	}
	return nil
}

// entryOwnClassDayFree rejects a second same-day entry by the same
// teacher for the same class. Overlaps with the class-day cap when the
// teacher owns the class's only entry, but holds independently.
func entryOwnClassDayFree(candidate models.PlanEntry, others []models.PlanEntry) *models.EntryConflictError {
	if candidate.SubEventDate == nil {
		return nil
	}
	for i := range others {
		item := others[i]
		if item.TeacherID != candidate.TeacherID || item.ClassID != candidate.ClassID || item.SubEventDate == nil {
			continue
		}
		if sameDay(*item.SubEventDate, *candidate.SubEventDate) {
			return &models.EntryConflictError{
				Rule:     models.EntryRuleOwnClassDayTaken,
				Message:  "you already have an entry for this class that day",
				Existing: &item,
			}
		}
	}
	return nil
}

// entryTeacherSlotFree rejects two sub-events by the same teacher at
// the same (date, period), across any class. A teacher teaching two
// classes cannot be in both rooms at once.
func entryTeacherSlotFree(candidate models.PlanEntry, others []models.PlanEntry) *models.EntryConflictError {
	if candidate.SubEventDate == nil || candidate.SubEventPeriod == nil {
		return nil
	}
	for i := range others {
		item := others[i]
		if item.TeacherID != candidate.TeacherID || item.SubEventDate == nil || item.SubEventPeriod == nil {
			continue
		}
		if sameDay(*item.SubEventDate, *candidate.SubEventDate) && *item.SubEventPeriod == *candidate.SubEventPeriod {
			return &models.EntryConflictError{
				Rule:     models.EntryRuleTeacherSlotTaken,
				Message:  "you already have a sub-event at that time",
				Existing: &item,
			}
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// List returns entries with pagination metadata.
func (s *EntryService) List(ctx context.Context, filter models.EntryFilter) ([]models.PlanEntry, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plan entries")
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
	return entries, pagination, nil
}

// Get loads a single entry.
func (s *EntryService) Get(ctx context.Context, id string) (*models.PlanEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan entry")
	}
	return entry, nil
}

// Create validates and persists a new DRAFT entry owned by the actor.
func (s *EntryService) Create(ctx context.Context, kind models.EntryKind, req CreateEntryRequest, actor *models.JWTClaims) (*models.PlanEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	weekStart, weekEnd, err := s.calendar.WeekBounds(req.Term, req.Week, time.Now().In(s.calendar.Location))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term or week")
	}

	candidate := models.PlanEntry{
		Kind:        kind,
		Term:        req.Term,
		Week:        req.Week,
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		Grade:       req.Grade,
		ClassID:     req.ClassID,
		SubjectID:   req.SubjectID,
		TeacherID:   actor.UserID,
		Topic:       req.Topic,
		Note:        req.Note,
		SubEventDay: req.SubEventDay,
		Status:      models.ApprovalStatusDraft,
	}
	if req.SubEventDate != nil {
		date, err := s.parseSubEventDate(*req.SubEventDate, req.SubEventPeriod)
		if err != nil {
			return nil, err
		}
		candidate.SubEventDate = &date
		candidate.SubEventPeriod = req.SubEventPeriod
	}

	if err := s.checkConflicts(ctx, &candidate); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan entry")
	}
	s.emitAudit(ctx, actor, models.AuditActionEntryCreate, candidate.ID, &candidate)
	return &candidate, nil
}

// Update applies a patch through the workflow's edit action and
// re-runs the conflict checks with the entry itself excluded. A
// non-privileged edit to an APPROVED entry re-queues it for review.
func (s *EntryService) Update(ctx context.Context, id string, req UpdateEntryRequest, actor *models.JWTClaims) (*models.PlanEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	nextStatus, err := s.machine.Decide(entry, ActionEdit, actor, nil)
	if err != nil {
		return nil, err
	}

	if req.Term != nil {
		entry.Term = *req.Term
	}
	if req.Week != nil {
		entry.Week = *req.Week
	}
	if req.Term != nil || req.Week != nil {
		weekStart, weekEnd, err := s.calendar.WeekBounds(entry.Term, entry.Week, time.Now().In(s.calendar.Location))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term or week")
		}
		entry.WeekStart = weekStart
		entry.WeekEnd = weekEnd
	}
	if req.Grade != nil {
		entry.Grade = *req.Grade
	}
	if req.ClassID != nil {
		entry.ClassID = *req.ClassID
	}
	if req.SubjectID != nil {
		entry.SubjectID = *req.SubjectID
	}
	if req.Topic != nil {
		entry.Topic = *req.Topic
	}
	if req.Note != nil {
		entry.Note = req.Note
	}
	if req.SubEventDay != nil {
		entry.SubEventDay = req.SubEventDay
	}
	if req.SubEventDate != nil {
		period := req.SubEventPeriod
		if period == nil {
			period = entry.SubEventPeriod
		}
		date, err := s.parseSubEventDate(*req.SubEventDate, period)
		if err != nil {
			return nil, err
		}
		entry.SubEventDate = &date
	}
	if req.SubEventPeriod != nil {
		// A period-only patch still has to fit the bell schedule of
		// the date already on the entry.
		if entry.SubEventDate != nil && !s.calendar.IsValidPeriod(*entry.SubEventDate, *req.SubEventPeriod) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sub-event period exceeds day's period count")
		}
		entry.SubEventPeriod = req.SubEventPeriod
	}

	if err := s.checkConflicts(ctx, entry); err != nil {
		return nil, err
	}

	entry.Status = nextStatus
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update plan entry")
	}
	s.emitAudit(ctx, actor, models.AuditActionEntryUpdate, entry.ID, entry)
	return entry, nil
}

// Delete removes an entry. Only the owner or an admin-level role may
// delete; a materialized linked booking is cancelled first.
func (s *EntryService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.TeacherID != actor.UserID && actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the entry owner or an admin may delete it")
	}

	s.sync.Cancel(ctx, entry)

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan entry")
	}
	s.emitAudit(ctx, actor, models.AuditActionEntryDelete, entry.ID, entry)
	return nil
}

// Submit confirms the actor's own DRAFT entry, recording the submitter
// as approver.
func (s *EntryService) Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.PlanEntry, error) {
	return s.decide(ctx, id, ActionSubmit, nil, actor)
}

// Approve records a reviewer approval and materializes the linked
// booking when the entry schedules a sub-event.
func (s *EntryService) Approve(ctx context.Context, id string, req DecisionRequest, actor *models.JWTClaims) (*models.PlanEntry, error) {
	return s.decide(ctx, id, ActionApprove, req.Comments, actor)
}

// Reject records a reviewer rejection and cancels any previously
// materialized booking.
func (s *EntryService) Reject(ctx context.Context, id string, req DecisionRequest, actor *models.JWTClaims) (*models.PlanEntry, error) {
	return s.decide(ctx, id, ActionReject, req.Comments, actor)
}

func (s *EntryService) decide(ctx context.Context, id string, action ApprovalAction, comments *string, actor *models.JWTClaims) (*models.PlanEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Lead reviewers are scoped to their own department, which lives on
	// the owning teacher's record.
	var owner *models.User
	if actor.Role == models.RoleLead {
		owner, err = s.users.FindByID(ctx, entry.TeacherID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entry owner")
		}
	}

	nextStatus, err := s.machine.Decide(entry, action, actor, owner)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDecision(ctx, entry.ID, nextStatus, actor.UserID, comments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	entry.Status = nextStatus
	entry.ApproverID = &actor.UserID
	entry.Comments = comments

	// Side effects after the decision is durable. Failures here are
	// logged, never rolled back into the workflow state.
	switch nextStatus {
	case models.ApprovalStatusApproved:
		s.sync.Materialize(ctx, entry)
	case models.ApprovalStatusRejected:
		s.sync.Cancel(ctx, entry)
	}

	s.notifier.NotifyDecision(ctx, models.NotificationPayload{
		RecipientID:  entry.TeacherID,
		EntryID:      entry.ID,
		EntryKind:    entry.Kind,
		Decision:     nextStatus,
		ClassID:      entry.ClassID,
		SubjectID:    entry.SubjectID,
		Term:         entry.Term,
		Week:         entry.Week,
		SubEventDate: entry.SubEventDate,
		SubEventSlot: entry.SubEventPeriod,
		Comments:     comments,
		DecidedBy:    actor.UserID,
		DecidedAt:    time.Now().In(s.calendar.Location),
	})

	if s.metrics != nil {
		s.metrics.RecordApprovalDecision(entry.Kind, nextStatus)
	}
	s.emitAudit(ctx, actor, models.AuditActionEntryDecision, entry.ID, entry)
	return entry, nil
}

// checkConflicts fetches the (term, week) scope across both kinds and
// runs Validate. Day and slot clashes do not care which kind the other
// entry is.
func (s *EntryService) checkConflicts(ctx context.Context, candidate *models.PlanEntry) error {
	existing, err := s.repo.ListByTermWeek(ctx, candidate.Term, candidate.Week)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check entry conflicts")
	}
	if conflict := s.Validate(*candidate, existing); conflict != nil {
		if s.metrics != nil {
			s.metrics.RecordEntryConflict(conflict.Rule)
		}
		return appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("entry conflict: %s", conflict.Message))
	}
	return nil
}

// parseSubEventDate parses the sub-event date and checks that the
// period, when given, fits that day's bell schedule.
func (s *EntryService) parseSubEventDate(raw string, period *int) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, raw, s.calendar.Location)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sub-event date, expected YYYY-MM-DD")
	}
	if period != nil && !s.calendar.IsValidPeriod(date, *period) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "sub-event period exceeds day's period count")
	}
	return date, nil
}

func (s *EntryService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	values, err := json.Marshal(payload)
	if err != nil {
		values = []byte("{}")
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "plan_entry",
		ResourceID: &resourceID,
		NewValues:  values,
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record plan entry audit log", zap.Error(err))
	}
}
