package models

import "time"

// BookingKind enumerates what a timetable slot is booked for.
type BookingKind string

const (
	BookingKindHomework BookingKind = "HOMEWORK"
	BookingKindQuiz     BookingKind = "QUIZ"
)

// BookingStatus captures the lifecycle of a master-schedule booking.
type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "SCHEDULED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking represents a homework or quiz slot in the master timetable.
type Booking struct {
	ID        string        `db:"id" json:"id"`
	Date      time.Time     `db:"date" json:"date"`
	Period    int           `db:"period" json:"period"`
	ClassID   string        `db:"class_id" json:"class_id"`
	SubjectID string        `db:"subject_id" json:"subject_id"`
	Kind      BookingKind   `db:"kind" json:"kind"`
	TeacherID string        `db:"teacher_id" json:"teacher_id"`
	Status    BookingStatus `db:"status" json:"status"`
	Note      *string       `db:"note" json:"note,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	ClassID   string
	SubjectID string
	TeacherID string
	Kind      BookingKind
	Status    BookingStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Booking conflict rules, reported in validation order.
const (
	BookingRulePeriodBound = "PERIOD_BOUND"
	BookingRuleSlotTaken   = "SLOT_TAKEN"
	BookingRuleQuizCap     = "QUIZ_CAP"
)

// BookingConflictError is returned when a candidate booking violates a
// timetable rule. Rule names the first predicate that failed.
type BookingConflictError struct {
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Existing *Booking `json:"existing,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
