package holdings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/holdings-service/internal/models"
)

// DefaultSnapshotKey is the redis key the snapshot lives under when none is configured
const DefaultSnapshotKey = "holdings:snapshot"

// SnapshotStore keeps the last holdings set fetched successfully from the remote source
type SnapshotStore interface {
	Load(ctx context.Context) ([]models.Holding, error)
	Store(ctx context.Context, holdings []models.Holding) error
}

// MemorySnapshot is a process-local SnapshotStore
type MemorySnapshot struct {
	mu       sync.RWMutex
	holdings []models.Holding
}

// NewMemorySnapshot returns an empty in-memory snapshot.
func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{}
}

func (m *MemorySnapshot) Load(_ context.Context) ([]models.Holding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.holdings), nil
}

func (m *MemorySnapshot) Store(_ context.Context, holdings []models.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings = slices.Clone(holdings)
	return nil
}

// RedisSnapshot shares the snapshot between replicas. The value is the JSON
// encoded holdings list; a missing key reads as an empty snapshot.
type RedisSnapshot struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisSnapshot stores the snapshot under key. A zero ttl never expires.
func NewRedisSnapshot(client redis.Cmdable, key string, ttl time.Duration) *RedisSnapshot {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisSnapshot{client: client, key: key, ttl: ttl}
}

func (r *RedisSnapshot) Load(ctx context.Context) ([]models.Holding, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.Holding{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var holdings []models.Holding
	if err := json.Unmarshal(data, &holdings); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return holdings, nil
}

func (r *RedisSnapshot) Store(ctx context.Context, holdings []models.Holding) error {
	if holdings == nil {
		holdings = []models.Holding{}
	}
	data, err := json.Marshal(holdings)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}
