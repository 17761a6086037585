package job

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "job"
	scanCount = 1000

	// Finished jobs stay readable for a day, then expire.
	finishedJobTTL = 24 * time.Hour
)

func jobKey(id string) string {
	return keyPrefix + ":" + id
}

// redisRepository stores each job as one hash so that field updates during a
// running job are cheap.
type redisRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewRedisRepository(cl *redis.Client, log *slog.Logger) *redisRepository {
	return &redisRepository{
		cl:  cl,
		log: log.With(slog.String("item", "JobRepository")),
	}
}

func (r *redisRepository) Save(ctx context.Context, j *entity.Job) error {
	key := jobKey(j.ID)

	fields := map[string]interface{}{
		"id":              j.ID,
		"url":             j.URL,
		"format":          string(j.Format),
		"output_path":     j.OutputPath,
		"status":          string(j.Status),
		"total_segments":  j.TotalSegments,
		"done_segments":   j.DoneSegments,
		"failed_segments": j.FailedCount,
		"bytes_written":   j.BytesWritten,
		"submitted_at":    j.SubmittedAt.UTC().Format(time.RFC3339),
		"error":           j.Error,
		"error_kind":      j.ErrorKind,
	}
	if !j.FinishedAt.IsZero() {
		fields["finished_at"] = j.FinishedAt.UTC().Format(time.RFC3339)
	}

	if err := r.cl.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("cannot save job %s: %w", j.ID, err)
	}

	if j.Status.Finished() {
		if err := r.cl.Expire(ctx, key, finishedJobTTL).Err(); err != nil {
			r.log.Error("Cannot set job expiration", slog.String("job_id", j.ID), slog.Any("error", err))
		}
	}

	return nil
}

func (r *redisRepository) Get(ctx context.Context, id string) (*entity.Job, error) {
	data, err := r.cl.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get job %s: %w", id, err)
	}

	if len(data) == 0 {
		return nil, common.ErrJobNotFound
	}

	return r.fromMap(data), nil
}

func (r *redisRepository) List(ctx context.Context) ([]*entity.Job, error) {
	var (
		cursor uint64
		jobs   []*entity.Job
	)

	for {
		keys, nextCursor, err := r.cl.Scan(ctx, cursor, jobKey("*"), scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("error scanning job keys: %w", err)
		}

		for _, key := range keys {
			data, err := r.cl.HGetAll(ctx, key).Result()
			if err != nil {
				r.log.Error("Cannot read job", slog.String("key", key), slog.Any("error", err))

				continue
			}

			if len(data) == 0 {
				continue
			}

			jobs = append(jobs, r.fromMap(data))
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return jobs, nil
}

func (r *redisRepository) fromMap(data map[string]string) *entity.Job {
	j := &entity.Job{
		ID:         data["id"],
		URL:        data["url"],
		Format:     entity.OutputFormat(data["format"]),
		OutputPath: data["output_path"],
		Status:     entity.JobStatus(data["status"]),
		Error:      data["error"],
		ErrorKind:  data["error_kind"],
	}

	j.TotalSegments = r.atoi(data, "total_segments")
	j.DoneSegments = r.atoi(data, "done_segments")
	j.FailedCount = r.atoi(data, "failed_segments")
	j.BytesWritten = int64(r.atoi(data, "bytes_written"))

	if v := data["submitted_at"]; v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			j.SubmittedAt = ts
		}
	}
	if v := data["finished_at"]; v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			j.FinishedAt = ts
		}
	}

	return j
}

func (r *redisRepository) atoi(data map[string]string, field string) int {
	v := data[field]
	if v == "" {
		return 0
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		r.log.Error("Cannot convert field to int", slog.String("field", field), slog.Any("error", err))

		return 0
	}

	return n
}
