package service

import (
	"fmt"

	"installpro/internal/model"
	"installpro/pkg/apperror"
)

// PolicyDecision is the outcome of evaluating a mutation against the
// permission rules. Message is shown to the user as-is.
type PolicyDecision struct {
	Allowed bool
	Reason  apperror.Reason
	Message string
}

// Err converts a denial into a Forbidden error, nil when allowed.
func (d PolicyDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperror.Forbidden(d.Reason, d.Message)
}

type policyRule struct {
	roles  []string // empty applies to every role
	reason apperror.Reason
	denies func(a model.Actor, p *model.Project, patch *ProjectPatch) bool
	text   func(a model.Actor, p *model.Project) string
}

var vendorEditable = map[string]bool{
	model.StatusDraft:    true,
	model.StatusPending:  true,
	model.StatusApproved: true,
	model.StatusAssigned: true,
}

var assignable = map[string]bool{
	model.StatusApproved: true,
	model.StatusAssigned: true,
}

// policyRules are evaluated in order; the first rule that denies wins. Roles
// with no matching rule (admin, super_admin, purchasing) are unrestricted.
var policyRules = []policyRule{
	{
		reason: apperror.ReasonRoleNotAllowed,
		denies: func(a model.Actor, _ *model.Project, _ *ProjectPatch) bool { return !model.IsKnownRole(a.Role) },
		text: func(a model.Actor, _ *model.Project) string {
			return fmt.Sprintf("El rol %q no tiene permiso para modificar proyectos", a.Role)
		},
	},
	{
		roles:  []string{model.RoleVendor},
		reason: apperror.ReasonNotOwner,
		denies: func(a model.Actor, p *model.Project, _ *ProjectPatch) bool { return !p.IsOwnedBy(a) },
		text: func(model.Actor, *model.Project) string {
			return "No tienes permiso para modificar este proyecto: solo su creador puede editarlo"
		},
	},
	{
		roles:  []string{model.RoleInstaller},
		reason: apperror.ReasonNotAssigned,
		denies: func(a model.Actor, p *model.Project, _ *ProjectPatch) bool { return !p.IsAssignedTo(a) },
		text: func(model.Actor, *model.Project) string {
			return "Solo puedes modificar proyectos que tienes asignados"
		},
	},
	{
		roles:  []string{model.RoleVendor, model.RoleInstaller},
		reason: apperror.ReasonSelfApproval,
		denies: func(_ model.Actor, _ *model.Project, patch *ProjectPatch) bool {
			s, ok := patch.Status.Get()
			return ok && s == model.StatusApproved
		},
		text: func(model.Actor, *model.Project) string {
			return "No puedes aprobar proyectos: solo un administrador puede hacerlo"
		},
	},
	{
		roles:  []string{model.RoleVendor},
		reason: apperror.ReasonInvalidState,
		denies: func(_ model.Actor, p *model.Project, _ *ProjectPatch) bool { return !vendorEditable[p.Status] },
		text: func(_ model.Actor, p *model.Project) string {
			return fmt.Sprintf("No puedes modificar un proyecto en estado %q", p.Status)
		},
	},
	{
		roles:  []string{model.RoleVendor},
		reason: apperror.ReasonAssignOutsideApproved,
		denies: func(_ model.Actor, p *model.Project, patch *ProjectPatch) bool {
			return patch.touchesAssignment() && !assignable[p.Status]
		},
		text: func(model.Actor, *model.Project) string {
			return "Solo puedes asignar instalador o proponer precio en proyectos aprobados o asignados"
		},
	},
}

// EvaluatePolicy checks a mutation against the current persisted state of the
// project, never the requested one.
func EvaluatePolicy(actor model.Actor, project *model.Project, patch *ProjectPatch) PolicyDecision {
	if patch == nil {
		patch = &ProjectPatch{}
	}
	for _, rule := range policyRules {
		if !ruleApplies(rule, actor.Role) {
			continue
		}
		if rule.denies(actor, project, patch) {
			return PolicyDecision{Reason: rule.reason, Message: rule.text(actor, project)}
		}
	}
	return PolicyDecision{Allowed: true}
}

func ruleApplies(rule policyRule, role string) bool {
	if len(rule.roles) == 0 {
		return true
	}
	for _, r := range rule.roles {
		if r == role {
			return true
		}
	}
	return false
}
