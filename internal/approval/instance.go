package approval

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the resolution state of one approval.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusSkipped
}

// passes reports whether the status lets the workflow move past a gate.
func (s Status) passes() bool {
	return s == StatusApproved || s == StatusSkipped
}

// Action is what an actor does to a pending approval.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionSkip    Action = "skip"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionApprove, ActionReject, ActionSkip:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// TargetStatus is the terminal status an action moves an approval to.
func (a Action) TargetStatus() Status {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionSkip:
		return StatusSkipped
	default:
		return StatusPending
	}
}

// Approval is the resolution record of one stage for one document.
type Approval struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	StageID    string    `json:"stage_id"`
	Status     Status    `json:"status"`
	ApproverID *string   `json:"approver_id,omitempty"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewPendingApprovals builds the rows a workflow start inserts.
func NewPendingApprovals(documentID string, stageIDs []string) []*Approval {
	out := make([]*Approval, len(stageIDs))
	for i, id := range stageIDs {
		out[i] = &Approval{
			DocumentID: documentID,
			StageID:    id,
			Status:     StatusPending,
			Version:    1,
		}
	}
	return out
}

// Instance is the workflow of one document: its approvals together with the
// stage definitions they reference.
type Instance struct {
	DocumentID string
	approvals  []*Approval
	catalog    *Catalog
}

// NewInstance orders approvals by their stage's sort_order. Approvals whose
// stage is missing from the catalog sort last.
func NewInstance(documentID string, approvals []*Approval, catalog *Catalog) *Instance {
	inst := &Instance{
		DocumentID: documentID,
		approvals:  append([]*Approval(nil), approvals...),
		catalog:    catalog,
	}
	sort.SliceStable(inst.approvals, func(i, j int) bool {
		si, iok := catalog.Stage(inst.approvals[i].StageID)
		sj, jok := catalog.Stage(inst.approvals[j].StageID)
		switch {
		case iok && jok:
			if si.SortOrder != sj.SortOrder {
				return si.SortOrder < sj.SortOrder
			}
			return si.ID < sj.ID
		case iok:
			return true
		default:
			return false
		}
	})
	return inst
}

// Started reports whether any approval exists.
func (i *Instance) Started() bool { return len(i.approvals) > 0 }

// Approvals returns the approvals in stage order.
func (i *Instance) Approvals() []*Approval {
	return append([]*Approval(nil), i.approvals...)
}

// Stage returns the definition of a stage referenced by the instance.
func (i *Instance) Stage(stageID string) *Stage {
	s, ok := i.catalog.Stage(stageID)
	if !ok {
		return nil
	}
	return s
}

// ApprovalFor returns the approval of stageID, or nil.
func (i *Instance) ApprovalFor(stageID string) *Approval {
	for _, a := range i.approvals {
		if a.StageID == stageID {
			return a
		}
	}
	return nil
}

// Stages returns the stages of the instance in order.
func (i *Instance) Stages() []*Stage {
	stages := make([]*Stage, 0, len(i.approvals))
	for _, a := range i.approvals {
		if s := i.Stage(a.StageID); s != nil {
			stages = append(stages, s)
		}
	}
	return stages
}

// WithStatus returns a copy of the instance with one approval moved to
// status. The receiver is not modified.
func (i *Instance) WithStatus(stageID string, status Status) *Instance {
	next := make([]*Approval, len(i.approvals))
	for n, a := range i.approvals {
		if a.StageID == stageID {
			c := *a
			c.Status = status
			next[n] = &c
			continue
		}
		next[n] = a
	}
	return &Instance{DocumentID: i.DocumentID, approvals: next, catalog: i.catalog}
}

func (i *Instance) ofKind(kind StageKind) []*Approval {
	var out []*Approval
	for _, a := range i.approvals {
		if i.Stage(a.StageID).Kind() == kind {
			out = append(out, a)
		}
	}
	return out
}

func (i *Instance) hasKind(kind StageKind) bool {
	return len(i.ofKind(kind)) > 0
}

func (i *Instance) anyOfKind(kind StageKind, pred func(Status) bool) bool {
	for _, a := range i.ofKind(kind) {
		if pred(a.Status) {
			return true
		}
	}
	return false
}
