package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Redis stores finished jobs as JSON strings, indexed by end time in a
// sorted set so the most recent can be listed
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis archive. Keys are namespaced by prefix
func NewRedis(client *redis.Client, prefix string) (*Redis, error) {
	if client == nil {
		return nil, ErrRedisRequired
	}
	return &Redis{
		client: client,
		prefix: prefix,
	}, nil
}

// Notify archives the job carried by a terminal event
func (r *Redis) Notify(ctx context.Context, ev *api.JobEvent) error {
	if !ev.IsTerminal() || ev.Job == nil {
		return nil
	}
	job := ev.Job
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	score := float64(ev.Timestamp.UnixMilli())
	if job.EndTime != nil {
		score = float64(job.EndTime.UnixMilli())
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.jobKey(job.ID), data, 0)
		p.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  score,
			Member: string(job.ID),
		})
		return nil
	})
	return err
}

// Get reads an archived job
func (r *Redis) Get(ctx context.Context, id api.JobID) (*api.Job, error) {
	data, err := r.client.Get(ctx, r.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotArchived, id)
		}
		return nil, err
	}
	var job api.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Recent returns up to limit archived job IDs, most recently finished first
func (r *Redis) Recent(ctx context.Context, limit int) ([]api.JobID, error) {
	if limit <= 0 {
		return []api.JobID{}, nil
	}
	ids, err := r.client.ZRevRange(
		ctx, r.indexKey(), 0, int64(limit-1),
	).Result()
	if err != nil {
		return nil, err
	}
	res := make([]api.JobID, 0, len(ids))
	for _, id := range ids {
		res = append(res, api.JobID(id))
	}
	return res, nil
}

func (r *Redis) jobKey(id api.JobID) string {
	return r.key("job", string(id))
}

func (r *Redis) indexKey() string {
	return r.key("jobs", "finished")
}

func (r *Redis) key(parts ...string) string {
	res := r.prefix
	for _, p := range parts {
		if res != "" {
			res += ":"
		}
		res += p
	}
	return res
}
