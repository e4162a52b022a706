package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type (
	// Blob writes each finished job as a JSON document to a bucket, keyed
	// by workflow and job ID
	Blob struct {
		bucket Bucket
		prefix string
	}

	// Bucket is the subset of *blob.Bucket the archive uses
	Bucket interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
		ReadAll(context.Context, string) ([]byte, error)
	}
)

var (
	ErrBucketRequired = errors.New("bucket is required")
	ErrRedisRequired  = errors.New("redis client is required")
	ErrNotArchived    = errors.New("job not archived")
	ErrNoIndex        = errors.New("archive index not enabled")
)

// NewBlob creates a bucket archive. Keys are written under prefix
func NewBlob(bucket Bucket, prefix string) (*Blob, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Blob{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Notify archives the job carried by a terminal event
func (b *Blob) Notify(ctx context.Context, ev *api.JobEvent) error {
	if !ev.IsTerminal() || ev.Job == nil {
		return nil
	}
	data, err := json.Marshal(ev.Job)
	if err != nil {
		return err
	}
	key := buildKey(b.prefix, ev.Job.WorkflowID, ev.Job.ID)
	return b.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

// Get reads an archived job back from the bucket
func (b *Blob) Get(
	ctx context.Context, wfID api.WorkflowID, id api.JobID,
) (*api.Job, error) {
	data, err := b.bucket.ReadAll(ctx, buildKey(b.prefix, wfID, id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
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

func buildKey(prefix string, wfID api.WorkflowID, id api.JobID) string {
	key := string(wfID) + "/" + string(id) + ".json"
	if prefix == "" {
		return key
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + key
}
