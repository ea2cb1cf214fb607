package service

import (
	"github.com/noah-isme/sma-agenda-api/internal/models"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
)

// ApprovalAction enumerates the workflow actions on a plan entry.
type ApprovalAction string

const (
	ActionSubmit  ApprovalAction = "SUBMIT"
	ActionApprove ApprovalAction = "APPROVE"
	ActionReject  ApprovalAction = "REJECT"
	ActionEdit    ApprovalAction = "EDIT"
)

type transitionKey struct {
	from   models.ApprovalStatus
	action ApprovalAction
}

// approvalTransitions is the explicit transition table for the review
// workflow. Submit moves DRAFT straight to APPROVED: owners confirm
// their own entries; the separate approve/reject actions serve the
// reviewer-driven path. Edits of an APPROVED or REJECTED entry re-queue
// it for review unless the editor is privileged.
var approvalTransitions = map[transitionKey]models.ApprovalStatus{
	{models.ApprovalStatusDraft, ActionSubmit}: models.ApprovalStatusApproved,

	{models.ApprovalStatusDraft, ActionApprove}:   models.ApprovalStatusApproved,
	{models.ApprovalStatusPending, ActionApprove}: models.ApprovalStatusApproved,

	{models.ApprovalStatusDraft, ActionReject}:    models.ApprovalStatusRejected,
	{models.ApprovalStatusPending, ActionReject}:  models.ApprovalStatusRejected,
	{models.ApprovalStatusRejected, ActionReject}: models.ApprovalStatusRejected,

	{models.ApprovalStatusDraft, ActionEdit}:    models.ApprovalStatusDraft,
	{models.ApprovalStatusPending, ActionEdit}:  models.ApprovalStatusPending,
	{models.ApprovalStatusApproved, ActionEdit}: models.ApprovalStatusPending,
	{models.ApprovalStatusRejected, ActionEdit}: models.ApprovalStatusPending,
}

// ApprovalMachine decides workflow transitions. It is stateless; all
// inputs arrive per call so the table can be exercised directly in
// tests.
type ApprovalMachine struct{}

// NewApprovalMachine constructs the machine.
func NewApprovalMachine() *ApprovalMachine {
	return &ApprovalMachine{}
}

// Decide returns the next status for applying action to the entry, or
// an authorization error when the actor may not perform it. The owner
// argument is the entry's owning teacher, needed for the
// department-scoped lead reviewer gate.
func (m *ApprovalMachine) Decide(entry *models.PlanEntry, action ApprovalAction, actor *models.JWTClaims, owner *models.User) (models.ApprovalStatus, error) {
	if entry == nil || actor == nil {
		return "", appErrors.ErrUnauthorized
	}

	if err := m.authorize(entry, action, actor, owner); err != nil {
		return "", err
	}

	next, ok := approvalTransitions[transitionKey{entry.Status, action}]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrConflict, "action not allowed in current status")
	}

	// Privileged editors do not trigger re-review; their edits keep the
	// entry's current status.
	if action == ActionEdit && actor.Role.IsPrivileged() {
		return entry.Status, nil
	}
	return next, nil
}

func (m *ApprovalMachine) authorize(entry *models.PlanEntry, action ApprovalAction, actor *models.JWTClaims, owner *models.User) error {
	switch action {
	case ActionSubmit:
		if actor.UserID != entry.TeacherID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the owner may submit an entry")
		}
		return nil
	case ActionApprove, ActionReject:
		if !actor.Role.IsPrivileged() {
			return appErrors.Clone(appErrors.ErrForbidden, "reviewer role required")
		}
		if actor.Role == models.RoleLead {
			return leadDepartmentGate(actor, owner)
		}
		return nil
	case ActionEdit:
		if actor.Role.IsPrivileged() || actor.UserID == entry.TeacherID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner or a reviewer may edit an entry")
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown workflow action")
	}
}

// leadDepartmentGate restricts lead reviewers to entries owned by
// teachers in their own department. An unset department on either side
// fails closed.
func leadDepartmentGate(actor *models.JWTClaims, owner *models.User) error {
	if actor.Department == nil || *actor.Department == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "reviewer has no department assigned")
	}
	if owner == nil || owner.Department == nil || *owner.Department == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "entry owner has no department assigned")
	}
	if *actor.Department != *owner.Department {
		return appErrors.Clone(appErrors.ErrForbidden, "entry belongs to another department")
	}
	return nil
}
