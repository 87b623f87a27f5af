package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RetryQueue holds document ids whose sync failed. Pushing an id already
// queued keeps a single entry.
type RetryQueue interface {
	Push(ctx context.Context, documentIDs []int64) error
	Pop(ctx context.Context, n int) ([]int64, error)
	Len(ctx context.Context) (int64, error)
}

// RedisRetryQueue keeps ids in a sorted set scored by first enqueue time, so
// the oldest failures are retried first.
type RedisRetryQueue struct {
	rdb goredis.UniversalClient
	key string
	now func() time.Time
}

func NewRedisRetryQueue(rdb goredis.UniversalClient, key string) *RedisRetryQueue {
	if key == "" {
		key = "cordee:search:retry"
	}
	return &RedisRetryQueue{rdb: rdb, key: key, now: time.Now}
}

func (q *RedisRetryQueue) Push(ctx context.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	score := float64(q.now().UnixMilli())
	members := make([]goredis.Z, 0, len(documentIDs))
	for _, id := range documentIDs {
		members = append(members, goredis.Z{Score: score, Member: strconv.FormatInt(id, 10)})
	}
	if err := q.rdb.ZAddNX(ctx, q.key, members...).Err(); err != nil {
		return fmt.Errorf("redis retry queue push: %w", err)
	}
	return nil
}

func (q *RedisRetryQueue) Pop(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := q.rdb.ZPopMin(ctx, q.key, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis retry queue pop: %w", err)
	}
	out := make([]int64, 0, len(rows))
	for _, z := range rows {
		raw, _ := z.Member.(string)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (q *RedisRetryQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}

// MemoryRetryQueue is the process-local queue used when redis is not
// configured. Its content is lost on restart.
type MemoryRetryQueue struct {
	mu  sync.Mutex
	seq int64
	ids map[int64]int64
}

func NewMemoryRetryQueue() *MemoryRetryQueue {
	return &MemoryRetryQueue{ids: map[int64]int64{}}
}

func (q *MemoryRetryQueue) Push(_ context.Context, documentIDs []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range documentIDs {
		if _, ok := q.ids[id]; ok {
			continue
		}
		q.seq++
		q.ids[id] = q.seq
	}
	return nil
}

func (q *MemoryRetryQueue) Pop(_ context.Context, n int) ([]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || len(q.ids) == 0 {
		return nil, nil
	}
	all := make([]int64, 0, len(q.ids))
	for id := range q.ids {
		all = append(all, id)
	}
	sort.Slice(all, func(i, j int) bool { return q.ids[all[i]] < q.ids[all[j]] })
	if len(all) > n {
		all = all[:n]
	}
	for _, id := range all {
		delete(q.ids, id)
	}
	return all, nil
}

func (q *MemoryRetryQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ids)), nil
}
