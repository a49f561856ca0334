// Package approval is the SOW approval engine: stage selection, the per-stage
// state machine, status projection, permissions and comment threading. It is
// pure; persistence and transport live elsewhere.
package approval

import (
	"sort"
	"time"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
)

// Stage names the engine attaches gating behaviour to.
const (
	StageNameManager  = "Manager Approval"
	StageNameDirector = "Director Approval"
	StageNameVP       = "VP Approval"
)

// StageKind is the closed classification of stage names.
type StageKind int

const (
	StageKindOther StageKind = iota
	StageKindManager
	StageKindDirector
	StageKindVP
)

// KindOf classifies a stage name.
func KindOf(name string) StageKind {
	switch name {
	case StageNameManager:
		return StageKindManager
	case StageNameDirector:
		return StageKindDirector
	case StageNameVP:
		return StageKindVP
	default:
		return StageKindOther
	}
}

func (k StageKind) String() string {
	switch k {
	case StageKindManager:
		return StageNameManager
	case StageKindDirector:
		return StageNameDirector
	case StageKindVP:
		return StageNameVP
	default:
		return "other"
	}
}

// Stage is a configured approval step.
type Stage struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AssignedRole string    `json:"assigned_role"`
	SortOrder    int       `json:"sort_order"`
	AutoApprove  bool      `json:"auto_approve"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Kind classifies the stage by name.
func (s *Stage) Kind() StageKind {
	if s == nil {
		return StageKindOther
	}
	return KindOf(s.Name)
}

// SameDefinition reports whether s and o agree on every field a running
// workflow is projected from. IsActive only feeds stage selection at start.
func (s *Stage) SameDefinition(o *Stage) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Name == o.Name &&
		s.AssignedRole == o.AssignedRole &&
		s.SortOrder == o.SortOrder &&
		s.AutoApprove == o.AutoApprove
}

// AssignedTo reports whether role is the stage's assigned role.
func (s *Stage) AssignedTo(role auth.Role) bool {
	if s == nil || role == auth.RoleOther {
		return false
	}
	return auth.ParseRole(s.AssignedRole) == role
}

// Catalog is an immutable snapshot of stage and rule configuration.
type Catalog struct {
	stages []*Stage
	byID   map[string]*Stage
	rules  []*Rule
}

// NewCatalog builds a snapshot. Stages are ordered by sort_order, rules by
// sort_order; ties fall back to id so the order is deterministic.
func NewCatalog(stages []*Stage, rules []*Rule) *Catalog {
	c := &Catalog{
		stages: append([]*Stage(nil), stages...),
		byID:   make(map[string]*Stage, len(stages)),
		rules:  append([]*Rule(nil), rules...),
	}
	sort.SliceStable(c.stages, func(i, j int) bool {
		if c.stages[i].SortOrder != c.stages[j].SortOrder {
			return c.stages[i].SortOrder < c.stages[j].SortOrder
		}
		return c.stages[i].ID < c.stages[j].ID
	})
	sort.SliceStable(c.rules, func(i, j int) bool {
		if c.rules[i].SortOrder != c.rules[j].SortOrder {
			return c.rules[i].SortOrder < c.rules[j].SortOrder
		}
		return c.rules[i].ID < c.rules[j].ID
	})
	for _, s := range c.stages {
		c.byID[s.ID] = s
	}
	return c
}

// Stage looks up a stage by id, active or not.
func (c *Catalog) Stage(id string) (*Stage, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Stages returns every stage in order.
func (c *Catalog) Stages() []*Stage {
	return append([]*Stage(nil), c.stages...)
}

// ActiveStages returns active stages in order.
func (c *Catalog) ActiveStages() []*Stage {
	active := make([]*Stage, 0, len(c.stages))
	for _, s := range c.stages {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active
}

// Rules returns every rule in evaluation order.
func (c *Catalog) Rules() []*Rule {
	return append([]*Rule(nil), c.rules...)
}
