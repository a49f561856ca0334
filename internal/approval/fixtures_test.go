package approval

import "time"

var (
	managerStage  = &Stage{ID: "st-manager", Name: StageNameManager, AssignedRole: "manager", SortOrder: 10, IsActive: true}
	directorStage = &Stage{ID: "st-director", Name: StageNameDirector, AssignedRole: "director", SortOrder: 20, IsActive: true}
	vpStage       = &Stage{ID: "st-vp", Name: StageNameVP, AssignedRole: "vp", SortOrder: 30, IsActive: true}
	legalStage    = &Stage{ID: "st-legal", Name: "Legal Review", AssignedRole: "legal", SortOrder: 40, AutoApprove: true, IsActive: true}
)

func standardCatalog(rules ...*Rule) *Catalog {
	return NewCatalog([]*Stage{vpStage, legalStage, managerStage, directorStage}, rules)
}

func amountRule(id string, min int64, stageID string, order int) *Rule {
	return &Rule{ID: id, Condition: AmountAtLeast{MinAmount: min}, StageID: stageID, SortOrder: order, IsActive: true}
}

// instanceOf builds an instance from stage id → status pairs.
func instanceOf(catalog *Catalog, statuses map[string]Status) *Instance {
	var approvals []*Approval
	for stageID, status := range statuses {
		approvals = append(approvals, &Approval{
			ID:         "ap-" + stageID,
			DocumentID: "doc-1",
			StageID:    stageID,
			Status:     status,
			Version:    1,
		})
	}
	return NewInstance("doc-1", approvals, catalog)
}

func at(minute int) time.Time {
	return time.Date(2026, 3, 1, 9, minute, 0, 0, time.UTC)
}
