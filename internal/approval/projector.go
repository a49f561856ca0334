package approval

// Projection is the observable state of a workflow instance.
type Projection struct {
	CurrentStage *Stage
	NextStage    *Stage
	IsComplete   bool
	IsRejected   bool
	Bypassed     bool
}

// gateOrder is the sequential gate chain: Director is only reachable once
// Manager has passed.
var gateOrder = []StageKind{StageKindManager, StageKindDirector}

// Project derives the workflow state from an instance.
//
// A VP approval completes the workflow regardless of every other stage. A
// Director approval completes it too. Otherwise the first gate in the chain
// that has not passed (approved or skipped) is current; when every gate in
// the instance has passed the workflow is complete. Instances without gate
// stages fall back to the first pending approval in stage order.
func Project(inst *Instance) Projection {
	var p Projection
	if !inst.Started() {
		return p
	}

	isApproved := func(s Status) bool { return s == StatusApproved }

	switch {
	case inst.anyOfKind(StageKindVP, isApproved):
		p.IsComplete = true
		p.Bypassed = true
		return p
	case inst.anyOfKind(StageKindDirector, isApproved):
		p.IsComplete = true
		return p
	}

	var current *Approval
	gated := false
	for _, kind := range gateOrder {
		if !inst.hasKind(kind) {
			continue
		}
		gated = true
		if inst.anyOfKind(kind, Status.passes) {
			continue
		}
		current = inst.ofKind(kind)[0]
		break
	}

	if !gated {
		for _, a := range inst.approvals {
			if a.Status == StatusPending || a.Status == StatusRejected {
				current = a
				break
			}
		}
	}

	if current == nil {
		p.IsComplete = true
		return p
	}

	p.CurrentStage = inst.Stage(current.StageID)
	p.NextStage = inst.stageAfter(current.StageID)
	for _, a := range inst.approvals {
		if a.Status == StatusRejected {
			p.IsRejected = true
			break
		}
	}
	return p
}

func (i *Instance) stageAfter(stageID string) *Stage {
	for n, a := range i.approvals {
		if a.StageID != stageID {
			continue
		}
		for _, later := range i.approvals[n+1:] {
			if s := i.Stage(later.StageID); s != nil {
				return s
			}
		}
		return nil
	}
	return nil
}
