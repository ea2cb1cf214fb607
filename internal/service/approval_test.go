package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	appErrors "github.com/noah-isme/sma-agenda-api/pkg/errors"
)

func strPtr(s string) *string {
	return &s
}

func TestApprovalMachineTransitions(t *testing.T) {
	machine := NewApprovalMachine()
	owner := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	tests := []struct {
		name    string
		from    models.ApprovalStatus
		action  ApprovalAction
		actor   *models.JWTClaims
		want    models.ApprovalStatus
		wantErr bool
	}{
		{"submit draft", models.ApprovalStatusDraft, ActionSubmit, owner, models.ApprovalStatusApproved, false},
		{"submit pending", models.ApprovalStatusPending, ActionSubmit, owner, "", true},
		{"submit approved", models.ApprovalStatusApproved, ActionSubmit, owner, "", true},
		{"approve draft", models.ApprovalStatusDraft, ActionApprove, admin, models.ApprovalStatusApproved, false},
		{"approve pending", models.ApprovalStatusPending, ActionApprove, admin, models.ApprovalStatusApproved, false},
		{"approve approved", models.ApprovalStatusApproved, ActionApprove, admin, "", true},
		{"approve rejected", models.ApprovalStatusRejected, ActionApprove, admin, "", true},
		{"reject draft", models.ApprovalStatusDraft, ActionReject, admin, models.ApprovalStatusRejected, false},
		{"reject pending", models.ApprovalStatusPending, ActionReject, admin, models.ApprovalStatusRejected, false},
		{"reject rejected", models.ApprovalStatusRejected, ActionReject, admin, models.ApprovalStatusRejected, false},
		{"reject approved", models.ApprovalStatusApproved, ActionReject, admin, "", true},
		{"edit draft", models.ApprovalStatusDraft, ActionEdit, owner, models.ApprovalStatusDraft, false},
		{"edit pending", models.ApprovalStatusPending, ActionEdit, owner, models.ApprovalStatusPending, false},
		{"edit approved requeues", models.ApprovalStatusApproved, ActionEdit, owner, models.ApprovalStatusPending, false},
		{"edit rejected requeues", models.ApprovalStatusRejected, ActionEdit, owner, models.ApprovalStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &models.PlanEntry{ID: "e1", TeacherID: "t1", Status: tt.from}
			next, err := machine.Decide(entry, tt.action, tt.actor, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestApprovalMachinePrivilegedEditKeepsStatus(t *testing.T) {
	machine := NewApprovalMachine()
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	for _, status := range []models.ApprovalStatus{
		models.ApprovalStatusDraft,
		models.ApprovalStatusPending,
		models.ApprovalStatusApproved,
		models.ApprovalStatusRejected,
	} {
		entry := &models.PlanEntry{ID: "e1", TeacherID: "t1", Status: status}
		next, err := machine.Decide(entry, ActionEdit, admin, nil)
		require.NoError(t, err)
		assert.Equal(t, status, next)
	}
}

func TestApprovalMachineSubmitRequiresOwner(t *testing.T) {
	machine := NewApprovalMachine()
	entry := &models.PlanEntry{ID: "e1", TeacherID: "t1", Status: models.ApprovalStatusDraft}

	_, err := machine.Decide(entry, ActionSubmit, &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApprovalMachineReviewRequiresPrivilegedRole(t *testing.T) {
	machine := NewApprovalMachine()
	entry := &models.PlanEntry{ID: "e1", TeacherID: "t1", Status: models.ApprovalStatusPending}
	teacher := &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}

	_, err := machine.Decide(entry, ActionApprove, teacher, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = machine.Decide(entry, ActionReject, teacher, nil)
	require.Error(t, err)
}

func TestApprovalMachineEditRequiresOwnerOrReviewer(t *testing.T) {
	machine := NewApprovalMachine()
	entry := &models.PlanEntry{ID: "e1", TeacherID: "t1", Status: models.ApprovalStatusDraft}

	_, err := machine.Decide(entry, ActionEdit, &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}, nil)
	require.Error(t, err)
}

func TestLeadDepartmentGate(t *testing.T) {
	machine := NewApprovalMachine()
	entry := &models.PlanEntry{ID: "e1", TeacherID: "t1", Status: models.ApprovalStatusPending}

	tests := []struct {
		name      string
		actorDept *string
		owner     *models.User
		wantErr   bool
	}{
		{"matching department", strPtr("MATH"), &models.User{ID: "t1", Department: strPtr("MATH")}, false},
		{"different department", strPtr("MATH"), &models.User{ID: "t1", Department: strPtr("SCIENCE")}, true},
		{"lead without department", nil, &models.User{ID: "t1", Department: strPtr("MATH")}, true},
		{"lead empty department", strPtr(""), &models.User{ID: "t1", Department: strPtr("MATH")}, true},
		{"owner without department", strPtr("MATH"), &models.User{ID: "t1"}, true},
		{"missing owner record", strPtr("MATH"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := &models.JWTClaims{UserID: "l1", Role: models.RoleLead, Department: tt.actorDept}
			next, err := machine.Decide(entry, ActionApprove, lead, tt.owner)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ApprovalStatusApproved, next)
		})
	}
}

func TestApprovalMachineNilInputs(t *testing.T) {
	machine := NewApprovalMachine()

	_, err := machine.Decide(nil, ActionSubmit, &models.JWTClaims{UserID: "t1"}, nil)
	require.Error(t, err)

	_, err = machine.Decide(&models.PlanEntry{ID: "e1"}, ActionSubmit, nil, nil)
	require.Error(t, err)
}
