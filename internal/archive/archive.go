package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob"

	"github.com/teano-uTTu-9788/AiCan/internal/config"
	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// Stores holds the archive sinks enabled by configuration
type Stores struct {
	Redis  *Redis
	Blob   *Blob
	closer []func() error
}

// Open connects to every archive store named in cfg. Blob drivers must be
// registered by the caller through blank imports
func Open(ctx context.Context, cfg config.ArchiveConfig) (*Stores, error) {
	res := &Stores{}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:            cfg.RedisAddr,
			Password:        cfg.RedisPassword,
			DB:              cfg.RedisDB,
			Protocol:        2,
			DisableIdentity: true,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		r, err := NewRedis(client, cfg.RedisPrefix)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		res.Redis = r
		res.closer = append(res.closer, client.Close)
		slog.Info("Redis archive enabled",
			slog.String("addr", cfg.RedisAddr))
	}

	if cfg.BucketURL != "" {
		bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		b, err := NewBlob(bucket, cfg.BucketPrefix)
		if err != nil {
			_ = bucket.Close()
			_ = res.Close()
			return nil, err
		}
		res.Blob = b
		res.closer = append(res.closer, bucket.Close)
		slog.Info("Blob archive enabled",
			slog.String("bucket", cfg.BucketURL))
	}

	return res, nil
}

// Notifiers returns the enabled stores as job event sinks
func (s *Stores) Notifiers() []engine.Notifier {
	var res []engine.Notifier
	if s.Redis != nil {
		res = append(res, s.Redis)
	}
	if s.Blob != nil {
		res = append(res, s.Blob)
	}
	return res
}

// Get reads an archived job, trying Redis first and then the bucket under
// each of the candidate workflow IDs
func (s *Stores) Get(
	ctx context.Context, id api.JobID, wfIDs []api.WorkflowID,
) (*api.Job, error) {
	if s.Redis != nil {
		job, err := s.Redis.Get(ctx, id)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrNotArchived) {
			return nil, err
		}
	}
	if s.Blob != nil {
		for _, wfID := range wfIDs {
			job, err := s.Blob.Get(ctx, wfID, id)
			if err == nil {
				return job, nil
			}
			if !errors.Is(err, ErrNotArchived) {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotArchived, id)
}

// Recent returns digests of up to limit archived jobs, most recently
// finished first. Only the Redis store keeps an index
func (s *Stores) Recent(
	ctx context.Context, limit int,
) ([]*api.JobDigest, error) {
	if s.Redis == nil {
		return nil, ErrNoIndex
	}
	ids, err := s.Redis.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	res := make([]*api.JobDigest, 0, len(ids))
	for _, id := range ids {
		job, err := s.Redis.Get(ctx, id)
		if errors.Is(err, ErrNotArchived) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, job.Digest())
	}
	return res, nil
}

// Close releases every store connection
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closer {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closer = nil
	return errors.Join(errs...)
}
