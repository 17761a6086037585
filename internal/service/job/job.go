package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/config"
	"github.com/hlsgrab/hlsgrab/internal/entity"
	"github.com/hlsgrab/hlsgrab/internal/ratelimit"
	"github.com/hlsgrab/hlsgrab/internal/service/assemble"
	"github.com/spf13/afero"
)

const serviceName = "job"

type Resolver interface {
	Resolve(ctx context.Context, url string) (*entity.MediaPlaylist, error)
}

type Assembler interface {
	Assemble(ctx context.Context, segments []entity.Segment, outputPath string, onProgress func(assemble.Progress)) (int64, error)
}

type Converter interface {
	Convert(ctx context.Context, inputPath string, format entity.OutputFormat) (string, error)
}

// Notifier is the outbound messaging channel. It may push back with
// *common.RateLimitError; the service honors the requested wait up to a
// configured cap.
type Notifier interface {
	Progress(ctx context.Context, job *entity.Job, done, total int, elapsed time.Duration) error
	Complete(ctx context.Context, job *entity.Job, path string) error
	Failed(ctx context.Context, job *entity.Job, err error) error
}

type Repository interface {
	Save(ctx context.Context, j *entity.Job) error
}

// Service runs stream-assembly jobs: resolve, assemble, convert, notify.
// Each job owns a unique output path; progress notifications are
// rate-limited per job and the terminal outcome is reported exactly once.
type Service struct {
	resolver  Resolver
	assembler Assembler
	converter Converter
	notifier  Notifier
	repo      Repository
	limiter   *ratelimit.Limiter
	fs        afero.Fs

	workDir       string
	maxFileSize   int64
	maxNotifyWait time.Duration

	sem    chan struct{}
	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup

	log *slog.Logger
}

func NewService(resolver Resolver, assembler Assembler, converter Converter, notifier Notifier,
	repo Repository, cfg *config.Config, log *slog.Logger) *Service {
	return NewServiceWithFS(afero.NewOsFs(), resolver, assembler, converter, notifier, repo, cfg, log)
}

func NewServiceWithFS(fs afero.Fs, resolver Resolver, assembler Assembler, converter Converter,
	notifier Notifier, repo Repository, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		resolver:      resolver,
		assembler:     assembler,
		converter:     converter,
		notifier:      notifier,
		repo:          repo,
		limiter:       ratelimit.New(cfg.NotifyConfig.ProgressInterval.Std()),
		fs:            fs,
		workDir:       cfg.DownloadConfig.WorkDir,
		maxFileSize:   cfg.DownloadConfig.MaxFileSize,
		maxNotifyWait: cfg.NotifyConfig.MaxRateLimitWait.Std(),
		sem:           make(chan struct{}, cfg.DownloadConfig.MaxJobs),
		active:        make(map[string]context.CancelFunc),
		log:           log.With(slog.String("service", serviceName)),
	}
}

// Start accepts a playlist URL and launches the job in the background. The
// returned job is a snapshot of the queued state.
func (s *Service) Start(ctx context.Context, rawURL string, format entity.OutputFormat) (*entity.Job, error) {
	j, err := s.create(ctx, rawURL, format)
	if err != nil {
		return nil, err
	}

	snapshot := *j

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(j)
	}()

	return &snapshot, nil
}

// Run executes one job synchronously and returns its terminal state. Used by
// one-shot CLI mode.
func (s *Service) Run(ctx context.Context, rawURL string, format entity.OutputFormat) (*entity.Job, error) {
	j, err := s.create(ctx, rawURL, format)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	func() {
		defer s.wg.Done()
		s.run(j)
	}()

	snapshot := *j
	if snapshot.Status != entity.JobStatusCompleted {
		return &snapshot, fmt.Errorf("job %s %s: %s", snapshot.ID, snapshot.Status, snapshot.Error)
	}

	return &snapshot, nil
}

// Cancel requests cooperative cancellation of a running job.
func (s *Service) Cancel(id string) error {
	s.mu.Lock()
	cancel, exists := s.active[id]
	s.mu.Unlock()

	if !exists {
		return common.ErrJobNotFound
	}

	cancel()

	return nil
}

// Shutdown cancels all active jobs and waits for them to finish.
func (s *Service) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.active {
		cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Service) create(ctx context.Context, rawURL string, format entity.OutputFormat) (*entity.Job, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	now := time.Now()
	id := uuid.NewString()

	j := &entity.Job{
		ID:          id,
		URL:         rawURL,
		Format:      format,
		Status:      entity.JobStatusQueued,
		SubmittedAt: now,
		// Unique per job, collisions avoided by construction.
		OutputPath: filepath.Join(s.workDir,
			fmt.Sprintf("stream_%s_%s.ts", id, now.UTC().Format("20060102_150405"))),
	}

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("cannot save job: %w", err)
	}

	s.log.Info("Job accepted", slog.String("job_id", j.ID), slog.String("url", rawURL))

	return j, nil
}

func (s *Service) run(j *entity.Job) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	s.active[j.ID] = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.active, j.ID)
		s.mu.Unlock()
		s.limiter.Reset(j.ID)
	}()

	j.Status = entity.JobStatusProcessing
	s.save(ctx, j)

	pl, err := s.resolver.Resolve(ctx, j.URL)
	if err != nil {
		s.fail(j, err)

		return
	}

	j.TotalSegments = len(pl.Segments)
	s.save(ctx, j)

	start := time.Now()

	_, err = s.assembler.Assemble(ctx, pl.Segments, j.OutputPath, func(p assemble.Progress) {
		j.DoneSegments = p.Done
		j.FailedCount = p.Failed
		j.BytesWritten = p.Bytes

		if s.limiter.Allow(j.ID) {
			s.save(ctx, j)
			s.notify(ctx, func() error {
				return s.notifier.Progress(ctx, j, p.Done, p.Total, p.Elapsed)
			})
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.finishCanceled(j)
		} else {
			s.fail(j, err)
		}

		return
	}

	if s.maxFileSize > 0 && j.BytesWritten > s.maxFileSize {
		if rmErr := s.fs.Remove(j.OutputPath); rmErr != nil {
			s.log.Error("Cannot remove oversized output", slog.String("path", j.OutputPath), slog.Any("error", rmErr))
		}

		s.fail(j, fmt.Errorf("%w: %d bytes", common.ErrFileTooLarge, j.BytesWritten))

		return
	}

	outputPath, err := s.converter.Convert(ctx, j.OutputPath, j.Format)
	if err != nil {
		if rmErr := s.fs.Remove(j.OutputPath); rmErr != nil {
			s.log.Error("Cannot remove assembled output", slog.String("path", j.OutputPath), slog.Any("error", rmErr))
		}

		s.fail(j, err)

		return
	}
	j.OutputPath = outputPath

	j.Status = entity.JobStatusCompleted
	j.FinishedAt = time.Now()
	s.save(context.Background(), j)

	// The final progress event bypasses the limiter so the channel always
	// sees done == total before the completion message.
	s.notify(ctx, func() error {
		return s.notifier.Progress(ctx, j, j.DoneSegments, j.TotalSegments, time.Since(start))
	})
	s.notify(ctx, func() error {
		return s.notifier.Complete(ctx, j, j.OutputPath)
	})
}

func (s *Service) fail(j *entity.Job, jobErr error) {
	ctx := context.Background()

	j.Status = entity.JobStatusFailed
	j.Error = jobErr.Error()
	j.ErrorKind = common.Kind(jobErr)
	j.FinishedAt = time.Now()
	s.save(ctx, j)

	s.log.Error("Job failed", slog.String("job_id", j.ID), slog.String("kind", j.ErrorKind), slog.Any("error", jobErr))

	s.notify(ctx, func() error {
		return s.notifier.Failed(ctx, j, jobErr)
	})
}

func (s *Service) finishCanceled(j *entity.Job) {
	ctx := context.Background()

	j.Status = entity.JobStatusCanceled
	j.Error = context.Canceled.Error()
	j.ErrorKind = common.Kind(context.Canceled)
	j.FinishedAt = time.Now()
	s.save(ctx, j)

	s.log.Info("Job canceled", slog.String("job_id", j.ID))

	s.notify(ctx, func() error {
		return s.notifier.Failed(ctx, j, context.Canceled)
	})
}

func (s *Service) save(ctx context.Context, j *entity.Job) {
	if err := s.repo.Save(ctx, j); err != nil {
		s.log.Error("Cannot save job state", slog.String("job_id", j.ID), slog.Any("error", err))
	}
}

// notify delivers one notification, honoring a rate-limit push-back from the
// channel. Waits longer than the configured cap are not served; the
// notification is dropped instead of blocking the job.
func (s *Service) notify(ctx context.Context, send func() error) {
	err := send()
	if err == nil {
		return
	}

	var rl *common.RateLimitError
	if !errors.As(err, &rl) {
		s.log.Error("Notifier error", slog.Any("error", err))

		return
	}

	if rl.RetryAfter > s.maxNotifyWait {
		s.log.Warn("Notification dropped, requested wait exceeds cap",
			slog.Duration("retry_after", rl.RetryAfter), slog.Duration("cap", s.maxNotifyWait))

		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(rl.RetryAfter):
		if err := send(); err != nil {
			s.log.Error("Notifier error after rate-limit wait", slog.Any("error", err))
		}
	}
}
