// Package notify holds the Notifier implementations the core reports
// through. The real messaging channel lives outside this repository; these
// adapters stand in for it on the console and in the daemon log.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/entity"
)

// Log reports job events through slog. Failures carry a stable error kind
// next to the human-readable detail.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{
		log: log.With(slog.String("item", "LogNotifier")),
	}
}

func (l *Log) Progress(_ context.Context, job *entity.Job, done, total int, elapsed time.Duration) error {
	l.log.Info("Job progress",
		slog.String("job_id", job.ID),
		slog.Int("done", done),
		slog.Int("total", total),
		slog.Duration("elapsed", elapsed))

	return nil
}

func (l *Log) Complete(_ context.Context, job *entity.Job, path string) error {
	l.log.Info("Job completed", slog.String("job_id", job.ID), slog.String("path", path))

	return nil
}

func (l *Log) Failed(_ context.Context, job *entity.Job, jobErr error) error {
	l.log.Error("Job failed",
		slog.String("job_id", job.ID),
		slog.String("kind", common.Kind(jobErr)),
		slog.Any("error", jobErr))

	return nil
}
