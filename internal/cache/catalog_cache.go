// Package cache keeps the approval catalog snapshot in Redis so status reads
// do not hit approval_stages and approval_rules on every request.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// CatalogKey is the Redis key of the snapshot. Bump the suffix when the
// cached shape changes.
const CatalogKey = "sow-approvals:catalog:v1"

// DefaultTTL bounds staleness when an invalidation is lost.
const DefaultTTL = 5 * time.Minute

type cachedRule struct {
	ID             string          `json:"id"`
	ConditionType  string          `json:"condition_type"`
	ConditionValue json.RawMessage `json:"condition_value"`
	StageID        string          `json:"stage_id"`
	SortOrder      int             `json:"sort_order"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type snapshot struct {
	Stages []*approval.Stage `json:"stages"`
	Rules  []cachedRule      `json:"rules"`
}

// CatalogCache stores the catalog snapshot under CatalogKey.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCatalogCache creates a cache over client. ttl <= 0 uses DefaultTTL.
func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CatalogCache{client: client, ttl: ttl}
}

// Get returns the cached catalog. A miss returns (nil, nil).
func (c *CatalogCache) Get(ctx context.Context) (*approval.Catalog, error) {
	raw, err := c.client.Get(ctx, CatalogKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read catalog cache")
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode catalog cache")
	}

	rules := make([]*approval.Rule, 0, len(snap.Rules))
	for _, r := range snap.Rules {
		cond, err := approval.DecodeCondition(r.ConditionType, r.ConditionValue)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode cached rule")
		}
		rules = append(rules, &approval.Rule{
			ID:        r.ID,
			Condition: cond,
			StageID:   r.StageID,
			SortOrder: r.SortOrder,
			IsActive:  r.IsActive,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return approval.NewCatalog(snap.Stages, rules), nil
}

// Set stores catalog with the configured TTL.
func (c *CatalogCache) Set(ctx context.Context, catalog *approval.Catalog) error {
	snap := snapshot{Stages: catalog.Stages()}
	for _, r := range catalog.Rules() {
		t, v, err := approval.EncodeCondition(r.Condition)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode rule condition")
		}
		snap.Rules = append(snap.Rules, cachedRule{
			ID:             r.ID,
			ConditionType:  string(t),
			ConditionValue: v,
			StageID:        r.StageID,
			SortOrder:      r.SortOrder,
			IsActive:       r.IsActive,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		})
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode catalog cache")
	}
	if err := c.client.Set(ctx, CatalogKey, raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write catalog cache")
	}
	return nil
}

// Invalidate drops the snapshot.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, CatalogKey).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to invalidate catalog cache")
	}
	return nil
}
