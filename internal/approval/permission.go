package approval

import (
	"fmt"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// Permissions are the actions an actor may take on a stage.
type Permissions struct {
	CanApprove bool `json:"can_approve"`
	CanReject  bool `json:"can_reject"`
	CanSkip    bool `json:"can_skip"`
}

// Allows reports whether the permissions cover action.
func (p Permissions) Allows(action Action) bool {
	switch action {
	case ActionApprove:
		return p.CanApprove
	case ActionReject:
		return p.CanReject
	case ActionSkip:
		return p.CanSkip
	default:
		return false
	}
}

// Evaluate is the permission table. current is the workflow's current stage
// (nil once complete); target is the stage being acted on, which decides
// assignment and auto-approve. For status display target == current.
//
//	vp        any current stage      approve/reject: assigned || admin   skip: admin
//	director  current is Director    approve/reject: assigned || admin   skip: admin
//	manager   current is Manager     approve/reject: assigned || admin   skip: admin
//	admin     any current stage      approve/reject: true                skip: auto_approve
//	other     never
func Evaluate(role auth.Role, current, target *Stage, isAdmin bool) Permissions {
	if current == nil || target == nil {
		return Permissions{}
	}

	assigned := target.AssignedTo(role)
	gated := func(open bool) Permissions {
		if !open {
			return Permissions{}
		}
		return Permissions{
			CanApprove: assigned || isAdmin,
			CanReject:  assigned || isAdmin,
			CanSkip:    isAdmin,
		}
	}

	switch role {
	case auth.RoleVP:
		return gated(true)
	case auth.RoleDirector:
		return gated(current.Kind() == StageKindDirector)
	case auth.RoleManager:
		return gated(current.Kind() == StageKindManager)
	case auth.RoleAdmin:
		return Permissions{CanApprove: true, CanReject: true, CanSkip: target.AutoApprove}
	case auth.RoleOther:
		return Permissions{}
	default:
		return Permissions{}
	}
}

// CurrentPermissions is what actor may do on the current stage of inst.
// Nothing is allowed when the current approval is no longer pending.
func CurrentPermissions(actor auth.Actor, inst *Instance, proj Projection) Permissions {
	if proj.CurrentStage == nil {
		return Permissions{}
	}
	if a := inst.ApprovalFor(proj.CurrentStage.ID); a == nil || a.Status != StatusPending {
		return Permissions{}
	}
	return Evaluate(actor.Role, proj.CurrentStage, proj.CurrentStage, actor.IsAdmin())
}

// Authorize checks that actor may apply action to the approval of stageID.
// The approval must exist and be pending; callers check that first so they
// can report NotFound and Conflict distinctly.
func Authorize(actor auth.Actor, inst *Instance, stageID string, action Action) error {
	proj := Project(inst)
	perms := Evaluate(actor.Role, proj.CurrentStage, inst.Stage(stageID), actor.IsAdmin())
	if !perms.Allows(action) {
		return errors.Forbidden(fmt.Sprintf("role %s may not %s stage %s", actor.Role, action, stageID))
	}
	return nil
}
