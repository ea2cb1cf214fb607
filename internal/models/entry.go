package models

import "time"

// EntryKind distinguishes the two academic planning record types that
// share the approval workflow.
type EntryKind string

const (
	EntryKindSummary EntryKind = "SUMMARY"
	EntryKindSupport EntryKind = "SUPPORT"
)

// ApprovalStatus captures the review lifecycle of a plan entry.
type ApprovalStatus string

const (
	ApprovalStatusDraft    ApprovalStatus = "DRAFT"
	ApprovalStatusPending  ApprovalStatus = "PENDING_APPROVAL"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// PlanEntry is a learning summary or learning-support record addressed
// by (term, week) and owned by a teacher. The optional sub-event is the
// quiz (summaries) or tutoring session (support) it schedules.
type PlanEntry struct {
	ID             string         `db:"id" json:"id"`
	Kind           EntryKind      `db:"kind" json:"kind"`
	Term           int            `db:"term" json:"term"`
	Week           int            `db:"week" json:"week"`
	WeekStart      time.Time      `db:"week_start" json:"week_start"`
	WeekEnd        time.Time      `db:"week_end" json:"week_end"`
	Grade          string         `db:"grade" json:"grade"`
	ClassID        string         `db:"class_id" json:"class_id"`
	SubjectID      string         `db:"subject_id" json:"subject_id"`
	TeacherID      string         `db:"teacher_id" json:"teacher_id"`
	Topic          string         `db:"topic" json:"topic"`
	Note           *string        `db:"note" json:"note,omitempty"`
	SubEventDay    *string        `db:"sub_event_day" json:"sub_event_day,omitempty"`
	SubEventDate   *time.Time     `db:"sub_event_date" json:"sub_event_date,omitempty"`
	SubEventPeriod *int           `db:"sub_event_period" json:"sub_event_period,omitempty"`
	Status         ApprovalStatus `db:"status" json:"status"`
	ApproverID     *string        `db:"approver_id" json:"approver_id,omitempty"`
	Comments       *string        `db:"comments" json:"comments,omitempty"`
	LinkedEventID  *string        `db:"linked_event_id" json:"linked_event_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// HasSubEvent reports whether the entry carries a scheduled sub-event.
func (e *PlanEntry) HasSubEvent() bool {
	return e != nil && e.SubEventDate != nil
}

// EntryFilter describes query params for listing plan entries.
type EntryFilter struct {
	Kind      EntryKind
	Term      int
	Week      int
	ClassID   string
	SubjectID string
	TeacherID string
	Status    ApprovalStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Entry conflict rules, reported in validation order.
const (
	EntryRuleClassSubjectTaken = "CLASS_SUBJECT_TAKEN"
	EntryRuleClassDayTaken     = "CLASS_DAY_TAKEN"
	EntryRuleOwnClassDayTaken  = "OWN_CLASS_DAY_TAKEN"
	EntryRuleTeacherSlotTaken  = "TEACHER_SLOT_TAKEN"
)

// EntryConflictError is returned when a candidate entry collides with
// an existing entry in the same term/week scope.
type EntryConflictError struct {
	Rule     string     `json:"rule"`
	Message  string     `json:"message"`
	Existing *PlanEntry `json:"existing,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *EntryConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
