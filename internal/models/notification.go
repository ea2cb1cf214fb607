package models

import "time"

// NotificationPayload is the structured message handed to the
// notification sink when a plan entry completes a workflow transition.
// Dispatch is best-effort; the payload never feeds back into the
// decision it describes.
type NotificationPayload struct {
	RecipientID  string         `json:"recipient_id"`
	EntryID      string         `json:"entry_id"`
	EntryKind    EntryKind      `json:"entry_kind"`
	Decision     ApprovalStatus `json:"decision"`
	ClassID      string         `json:"class_id"`
	SubjectID    string         `json:"subject_id"`
	Term         int            `json:"term"`
	Week         int            `json:"week"`
	SubEventDate *time.Time     `json:"sub_event_date,omitempty"`
	SubEventSlot *int           `json:"sub_event_slot,omitempty"`
	Comments     *string        `json:"comments,omitempty"`
	DecidedBy    string         `json:"decided_by"`
	DecidedAt    time.Time      `json:"decided_at"`
}
