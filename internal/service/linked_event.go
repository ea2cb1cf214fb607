package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-agenda-api/internal/models"
)

type linkedBookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error
}

type linkedEntryStore interface {
	SetLinkedEvent(ctx context.Context, id string, linkedEventID *string) error
}

// LinkedEventSynchronizer keeps the master timetable consistent with
// approval outcomes: approving a summary that schedules a quiz
// materializes the booking, rejecting it cancels the booking again.
// All of it is best-effort; a failed side effect never unwinds the
// workflow decision that triggered it.
type LinkedEventSynchronizer struct {
	bookings linkedBookingStore
	entries  linkedEntryStore
	cache    *CacheService
	logger   *zap.Logger
}

// NewLinkedEventSynchronizer constructs the synchronizer.
func NewLinkedEventSynchronizer(bookings linkedBookingStore, entries linkedEntryStore, cache *CacheService, logger *zap.Logger) *LinkedEventSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkedEventSynchronizer{bookings: bookings, entries: entries, cache: cache, logger: logger}
}

// Materialize creates the companion quiz booking for an approved
// summary entry and stores its id on the entry. Support entries carry
// their session on the record itself and produce no booking. The
// sub-event slot was already validated by the entry conflict checks,
// so the timetable rules are not re-run here.
func (s *LinkedEventSynchronizer) Materialize(ctx context.Context, entry *models.PlanEntry) {
	if entry == nil || !entry.HasSubEvent() || entry.LinkedEventID != nil {
		return
	}
	if entry.Kind != models.EntryKindSummary {
		return
	}
	if entry.SubEventPeriod == nil {
		s.logger.Warn("sub-event has no period, skipping booking materialization",
			zap.String("entry_id", entry.ID))
		return
	}

	booking := models.Booking{
		Date:      *entry.SubEventDate,
		Period:    *entry.SubEventPeriod,
		ClassID:   entry.ClassID,
		SubjectID: entry.SubjectID,
		Kind:      models.BookingKindQuiz,
		TeacherID: entry.TeacherID,
		Status:    models.BookingStatusScheduled,
	}
	if err := s.bookings.Create(ctx, &booking); err != nil {
		s.logger.Error("failed to materialize linked booking",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}

	if err := s.entries.SetLinkedEvent(ctx, entry.ID, &booking.ID); err != nil {
		s.logger.Error("failed to store linked booking reference",
			zap.String("entry_id", entry.ID), zap.String("booking_id", booking.ID), zap.Error(err))
		return
	}
	entry.LinkedEventID = &booking.ID
	s.invalidate(ctx, entry)
}

// Cancel revokes a previously materialized booking and clears the
// reference on the entry.
func (s *LinkedEventSynchronizer) Cancel(ctx context.Context, entry *models.PlanEntry) {
	if entry == nil || entry.LinkedEventID == nil {
		return
	}

	if err := s.bookings.UpdateStatus(ctx, *entry.LinkedEventID, models.BookingStatusCancelled); err != nil {
		s.logger.Error("failed to cancel linked booking",
			zap.String("entry_id", entry.ID), zap.String("booking_id", *entry.LinkedEventID), zap.Error(err))
		return
	}

	if err := s.entries.SetLinkedEvent(ctx, entry.ID, nil); err != nil {
		s.logger.Error("failed to clear linked booking reference",
			zap.String("entry_id", entry.ID), zap.Error(err))
	}
	entry.LinkedEventID = nil
	s.invalidate(ctx, entry)
}

func (s *LinkedEventSynchronizer) invalidate(ctx context.Context, entry *models.PlanEntry) {
	if !s.cache.Enabled() || entry.SubEventDate == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, agendaCacheKey(entry.ClassID, *entry.SubEventDate))
}
