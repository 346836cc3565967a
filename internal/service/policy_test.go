package service

import (
	"testing"

	"installpro/internal/model"
	"installpro/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEvaluatePolicy(t *testing.T) {
	vendor := model.Actor{ID: uuid.New(), Name: "Valeria", Role: model.RoleVendor}
	stranger := model.Actor{ID: uuid.New(), Name: "Otro", Role: model.RoleVendor}
	installer := model.Actor{ID: uuid.New(), Name: "Ignacio", Role: model.RoleInstaller}
	admin := model.Actor{ID: uuid.New(), Name: "Ana", Role: model.RoleAdmin}
	purchasing := model.Actor{ID: uuid.New(), Name: "Pablo", Role: model.RolePurchasing}

	project := func(status string) *model.Project {
		return &model.Project{
			Status:                status,
			CreatedByID:           &vendor.ID,
			CreatedByName:         vendor.Name,
			AssignedInstallerID:   &installer.ID,
			AssignedInstallerName: installer.Name,
		}
	}

	cases := []struct {
		name    string
		actor   model.Actor
		project *model.Project
		patch   ProjectPatch
		reason  apperror.Reason
		allowed bool
	}{
		{"unknown role", model.Actor{ID: uuid.New(), Role: "guest"}, project(model.StatusDraft), ProjectPatch{}, apperror.ReasonRoleNotAllowed, false},
		{"vendor edits own draft", vendor, project(model.StatusDraft), ProjectPatch{Notes: optStr("x")}, "", true},
		{"vendor edits foreign project", stranger, project(model.StatusDraft), ProjectPatch{Notes: optStr("x")}, apperror.ReasonNotOwner, false},
		{"ownership checked before approval", stranger, project(model.StatusDraft), ProjectPatch{Status: optStr(model.StatusApproved)}, apperror.ReasonNotOwner, false},
		{"vendor self approval", vendor, project(model.StatusPending), ProjectPatch{Status: optStr(model.StatusApproved)}, apperror.ReasonSelfApproval, false},
		{"vendor on completed project", vendor, project(model.StatusCompleted), ProjectPatch{Notes: optStr("x")}, apperror.ReasonInvalidState, false},
		{"vendor on pending approval", vendor, project(model.StatusPendingApproval), ProjectPatch{Notes: optStr("x")}, apperror.ReasonInvalidState, false},
		{"vendor assigns while pending", vendor, project(model.StatusPending), ProjectPatch{AssignedInstaller: optStr("Ignacio")}, apperror.ReasonAssignOutsideApproved, false},
		{"vendor proposes while draft", vendor, project(model.StatusDraft), ProjectPatch{InstallerPriceProposal: optDec("10")}, apperror.ReasonAssignOutsideApproved, false},
		{"vendor assigns when approved", vendor, project(model.StatusApproved), ProjectPatch{AssignedInstaller: optStr("Ignacio")}, "", true},
		{"vendor counter offers when assigned", vendor, project(model.StatusAssigned), ProjectPatch{InstallerPriceProposal: optDec("600"), InstallerPriceStatus: optStr(model.PriceStatusCounterOffered)}, "", true},
		{"installer on assigned project", installer, project(model.StatusAssigned), ProjectPatch{InstallerPriceStatus: optStr(model.PriceStatusAccepted)}, "", true},
		{"installer on other project", model.Actor{ID: uuid.New(), Name: "Otra", Role: model.RoleInstaller}, project(model.StatusAssigned), ProjectPatch{}, apperror.ReasonNotAssigned, false},
		{"installer approves", installer, project(model.StatusAssigned), ProjectPatch{Status: optStr(model.StatusApproved)}, apperror.ReasonSelfApproval, false},
		{"admin approves anything", admin, project(model.StatusCompleted), ProjectPatch{Status: optStr(model.StatusApproved)}, "", true},
		{"purchasing unrestricted", purchasing, project(model.StatusRejected), ProjectPatch{AssignedInstaller: optStr("Ignacio")}, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := EvaluatePolicy(tc.actor, tc.project, &tc.patch)
			assert.Equal(t, tc.allowed, d.Allowed)
			assert.Equal(t, tc.reason, d.Reason)
			if tc.allowed {
				assert.NoError(t, d.Err())
				return
			}
			assert.NotEmpty(t, d.Message)
			assert.True(t, apperror.IsCode(d.Err(), apperror.CodeForbidden))
		})
	}
}

func TestEvaluatePolicyNilPatch(t *testing.T) {
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	assert.True(t, EvaluatePolicy(admin, &model.Project{Status: model.StatusDraft}, nil).Allowed)
}
