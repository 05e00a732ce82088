package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/rishimeka/astro/pkg/domain"
)

// Store implements ports.RunStore on Redis.
//
// Run summaries live under plain keys, node records under one hash per run,
// and a sorted set indexes run ids by their last update so listing stays
// cheap. With a TTL configured, expired entries are skipped on read and the
// index is cleaned lazily during List.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets an expiration on persisted runs. Zero means keep forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix namespaces every key, for shared Redis instances.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewFromClient creates a Store on an existing Redis client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "astro:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) runKey(runID string) string   { return s.prefix + "run:" + runID }
func (s *Store) nodesKey(runID string) string { return s.prefix + "run:" + runID + ":nodes" }
func (s *Store) indexKey() string             { return s.prefix + "runs:index" }

// SaveRun persists the run summary and refreshes its index entry.
func (s *Store) SaveRun(ctx context.Context, run domain.RunRecord) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}

	score := run.UpdatedAt
	if score.IsZero() {
		score = time.Now()
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(run.ID), payload, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(score.UnixNano()),
		Member: run.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error saving run %s: %w", run.ID, err)
	}
	return nil
}

// LoadRun retrieves a run summary.
func (s *Store) LoadRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	payload, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("redis error loading run %s: %w", runID, err)
	}

	var run domain.RunRecord
	if err := json.Unmarshal(payload, &run); err != nil {
		return domain.RunRecord{}, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns run summaries, most recently updated first. Index entries
// whose payload has expired are skipped; with a TTL configured, entries old
// enough to be expired are also pruned from the index.
func (s *Store) ListRuns(ctx context.Context) ([]domain.RunRecord, error) {
	if s.ttl > 0 {
		cutoff := time.Now().Add(-s.ttl).UnixNano()
		maxScore := fmt.Sprintf("%d", cutoff)
		if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", maxScore).Err(); err != nil {
			return nil, fmt.Errorf("redis error pruning run index: %w", err)
		}
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error listing runs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.RunRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error loading run batch: %w", err)
	}

	runs := make([]domain.RunRecord, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // expired between index read and fetch
		}
		var run domain.RunRecord
		if err := json.Unmarshal([]byte(raw), &run); err != nil {
			return nil, fmt.Errorf("unmarshal run %s: %w", ids[i], err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// SaveNodeRecord persists one node outcome in the run's hash.
func (s *Store) SaveNodeRecord(ctx context.Context, rec domain.NodeRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal node record %s/%s: %w", rec.RunID, rec.NodeID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.nodesKey(rec.RunID), rec.NodeID, payload)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.nodesKey(rec.RunID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error saving node record %s/%s: %w", rec.RunID, rec.NodeID, err)
	}
	return nil
}

// LoadNodeRecords retrieves a run's node records in node id order.
func (s *Store) LoadNodeRecords(ctx context.Context, runID string) ([]domain.NodeRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.nodesKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error loading node records for %s: %w", runID, err)
	}

	records := make([]domain.NodeRecord, 0, len(fields))
	for nodeID, raw := range fields {
		var rec domain.NodeRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal node record %s/%s: %w", runID, nodeID, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].NodeID < records[j].NodeID })
	return records, nil
}

// DeleteRun removes the run summary, its node records and its index entry.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.runKey(runID), s.nodesKey(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error deleting run %s: %w", runID, err)
	}
	return nil
}
