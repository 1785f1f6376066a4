package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// workspaceTTL bounds each snapshot to a bounded-TTL Redis key rather than
// a permanent store: long enough to cover re-runs of the same work date
// within a week, short enough not to accumulate unbounded keys.
const workspaceTTL = 7 * 24 * time.Hour

// RedisWorkspaceStore implements WorkspaceStore, keying each snapshot by
// its work date.
type RedisWorkspaceStore struct {
	client *redis.Client
}

// NewRedisWorkspaceStore wraps an already-configured *redis.Client.
func NewRedisWorkspaceStore(client *redis.Client) *RedisWorkspaceStore {
	return &RedisWorkspaceStore{client: client}
}

func workspaceKey(workDate string) string {
	return fmt.Sprintf("workspace:%s", workDate)
}

// Health pings Redis and reports latency. The ops API's /health endpoint
// does not call it; it checks only the run store.
func (r *RedisWorkspaceStore) Health(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: time.Since(start), Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: time.Since(start)}
}

// SaveWorkspace overwrites the snapshot for workDate, resetting its TTL.
func (r *RedisWorkspaceStore) SaveWorkspace(ctx context.Context, workDate string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling workspace for %s: %w", workDate, err)
	}

	if err := r.client.Set(ctx, workspaceKey(workDate), data, workspaceTTL).Err(); err != nil {
		return fmt.Errorf("saving workspace for %s: %w", workDate, err)
	}
	return nil
}

// LoadWorkspace returns (nil, false, nil) when no snapshot exists yet for
// workDate.
func (r *RedisWorkspaceStore) LoadWorkspace(ctx context.Context, workDate string) (map[string]any, bool, error) {
	data, err := r.client.Get(ctx, workspaceKey(workDate)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading workspace for %s: %w", workDate, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, fmt.Errorf("unmarshaling workspace for %s: %w", workDate, err)
	}
	return payload, true, nil
}
