package approval

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStageCount is how many active stages a document gets when no rule
// matches.
const DefaultStageCount = 3

// ConditionType is the persisted discriminator of a rule condition.
type ConditionType string

const ConditionAmount ConditionType = "amount"

// Attributes are the document facts rules are evaluated against.
type Attributes struct {
	Amount int64
}

// Condition is a rule predicate. Implementations are a closed set; add a new
// variant and a case in Matches for each new kind.
type Condition interface {
	Type() ConditionType
	isCondition()
}

// AmountAtLeast matches when the document amount is >= MinAmount.
type AmountAtLeast struct {
	MinAmount int64 `json:"min_amount"`
}

func (AmountAtLeast) Type() ConditionType { return ConditionAmount }
func (AmountAtLeast) isCondition()        {}

// Matches evaluates cond against attrs.
func Matches(cond Condition, attrs Attributes) bool {
	switch c := cond.(type) {
	case AmountAtLeast:
		return attrs.Amount >= c.MinAmount
	case *AmountAtLeast:
		return c != nil && attrs.Amount >= c.MinAmount
	default:
		return false
	}
}

// DecodeCondition rebuilds a condition from its stored form.
func DecodeCondition(conditionType string, value []byte) (Condition, error) {
	switch ConditionType(conditionType) {
	case ConditionAmount:
		var c AmountAtLeast
		if err := json.Unmarshal(value, &c); err != nil {
			return nil, fmt.Errorf("decode amount condition: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", conditionType)
	}
}

// EncodeCondition returns the stored form of cond.
func EncodeCondition(cond Condition) (ConditionType, []byte, error) {
	if cond == nil {
		return "", nil, fmt.Errorf("condition is required")
	}
	value, err := json.Marshal(cond)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s condition: %w", cond.Type(), err)
	}
	return cond.Type(), value, nil
}

// Rule maps a condition onto a required stage.
type Rule struct {
	ID        string    `json:"id"`
	Condition Condition `json:"-"`
	StageID   string    `json:"stage_id"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON exposes the condition in its stored shape.
func (r *Rule) MarshalJSON() ([]byte, error) {
	type plain Rule
	out := struct {
		*plain
		ConditionType  ConditionType   `json:"condition_type"`
		ConditionValue json.RawMessage `json:"condition_value"`
	}{plain: (*plain)(r)}
	if r.Condition != nil {
		t, v, err := EncodeCondition(r.Condition)
		if err != nil {
			return nil, err
		}
		out.ConditionType, out.ConditionValue = t, v
	}
	return json.Marshal(out)
}

// RequiredStages returns the ids of the stages a document with attrs must
// pass, ordered by stage sort_order. Every matching active rule contributes
// its stage; rules pointing at unknown or inactive stages are ignored. When
// nothing matches, the first DefaultStageCount active stages are used.
func RequiredStages(catalog *Catalog, attrs Attributes) []string {
	seen := make(map[string]bool)
	var picked []*Stage
	for _, rule := range catalog.Rules() {
		if !rule.IsActive || !Matches(rule.Condition, attrs) {
			continue
		}
		stage, ok := catalog.Stage(rule.StageID)
		if !ok || !stage.IsActive || seen[stage.ID] {
			continue
		}
		seen[stage.ID] = true
		picked = append(picked, stage)
	}

	if len(picked) == 0 {
		active := catalog.ActiveStages()
		if len(active) > DefaultStageCount {
			active = active[:DefaultStageCount]
		}
		picked = active
	}

	ordered := NewCatalog(picked, nil).Stages()
	ids := make([]string, len(ordered))
	for i, s := range ordered {
		ids[i] = s.ID
	}
	return ids
}
