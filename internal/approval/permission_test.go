package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

func TestEvaluate(t *testing.T) {
	all := Permissions{CanApprove: true, CanReject: true, CanSkip: true}
	act := Permissions{CanApprove: true, CanReject: true}
	none := Permissions{}

	tests := []struct {
		name    string
		role    auth.Role
		admin   bool
		current *Stage
		target  *Stage
		want    Permissions
	}{
		{"manager on manager stage", auth.RoleManager, false, managerStage, managerStage, act},
		{"manager on director stage", auth.RoleManager, false, directorStage, directorStage, none},
		{"manager targeting director while manager is current", auth.RoleManager, false, managerStage, directorStage, none},
		{"manager with admin claim can skip", auth.RoleManager, true, managerStage, managerStage, all},
		{"director on director stage", auth.RoleDirector, false, directorStage, directorStage, act},
		{"director on manager stage", auth.RoleDirector, false, managerStage, managerStage, none},
		{"vp acts on vp stage at any point", auth.RoleVP, false, managerStage, vpStage, act},
		{"vp on someone else's stage", auth.RoleVP, false, managerStage, managerStage, none},
		{"admin approves any stage", auth.RoleAdmin, true, managerStage, directorStage, act},
		{"admin skips auto-approve stage", auth.RoleAdmin, true, managerStage, legalStage, all},
		{"other role", auth.RoleOther, false, managerStage, managerStage, none},
		{"no current stage", auth.RoleAdmin, true, nil, managerStage, none},
		{"no target stage", auth.RoleVP, false, managerStage, nil, none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.role, tt.current, tt.target, tt.admin))
		})
	}
}

func TestManagerNeverActsOnDirectorStage(t *testing.T) {
	for _, target := range []*Stage{managerStage, directorStage, vpStage, legalStage} {
		p := Evaluate(auth.RoleManager, directorStage, target, false)
		assert.False(t, p.CanApprove)
		assert.False(t, p.CanReject)
	}
}

func TestCurrentPermissions(t *testing.T) {
	catalog := standardCatalog()
	manager := auth.Actor{ID: "u-mgr", Role: auth.RoleManager}

	inst := instanceOf(catalog, map[string]Status{managerStage.ID: StatusPending, directorStage.ID: StatusPending})
	assert.Equal(t, Permissions{CanApprove: true, CanReject: true}, CurrentPermissions(manager, inst, Project(inst)))

	rejected := inst.WithStatus(managerStage.ID, StatusRejected)
	assert.Equal(t, Permissions{}, CurrentPermissions(manager, rejected, Project(rejected)))

	done := inst.WithStatus(managerStage.ID, StatusApproved).WithStatus(directorStage.ID, StatusApproved)
	assert.Equal(t, Permissions{}, CurrentPermissions(auth.Actor{ID: "a", Role: auth.RoleAdmin}, done, Project(done)))
}

func TestAuthorize(t *testing.T) {
	catalog := standardCatalog()
	inst := instanceOf(catalog, map[string]Status{
		managerStage.ID:  StatusPending,
		directorStage.ID: StatusPending,
		vpStage.ID:       StatusPending,
	})

	assert.NoError(t, Authorize(auth.Actor{ID: "m", Role: auth.RoleManager}, inst, managerStage.ID, ActionApprove))
	assert.NoError(t, Authorize(auth.Actor{ID: "v", Role: auth.RoleVP}, inst, vpStage.ID, ActionApprove))

	err := Authorize(auth.Actor{ID: "d", Role: auth.RoleDirector}, inst, directorStage.ID, ActionApprove)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden), "director must wait for the manager gate")

	err = Authorize(auth.Actor{ID: "m", Role: auth.RoleManager}, inst, managerStage.ID, ActionSkip)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))

	err = Authorize(auth.Actor{ID: "a", Role: auth.RoleAdmin}, inst, managerStage.ID, ActionSkip)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden), "manager stage is not auto-approve")
}
