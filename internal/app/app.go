package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/adapter/batchadapter"
	"github.com/hlsgrab/hlsgrab/internal/adapter/ffmpegadapter"
	"github.com/hlsgrab/hlsgrab/internal/adapter/hlsadapter"
	"github.com/hlsgrab/hlsgrab/internal/adapter/notify"
	"github.com/hlsgrab/hlsgrab/internal/config"
	"github.com/hlsgrab/hlsgrab/internal/entity"
	httphandler "github.com/hlsgrab/hlsgrab/internal/handler/http"
	jobrepo "github.com/hlsgrab/hlsgrab/internal/repository/job"
	"github.com/hlsgrab/hlsgrab/internal/service/assemble"
	sjob "github.com/hlsgrab/hlsgrab/internal/service/job"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 5 * time.Second

type jobRepository interface {
	Save(ctx context.Context, j *entity.Job) error
	Get(ctx context.Context, id string) (*entity.Job, error)
	List(ctx context.Context) ([]*entity.Job, error)
}

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	jobs    *sjob.Service
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

// Start runs the daemon: HTTP API plus background job workers. Job state goes
// to redis when configured, otherwise it is kept in memory for the lifetime
// of the process.
func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)
	a.log = newLogger(a.cfg.LogLevel)

	var repo jobRepository
	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			panic(err)
		}

		repo = jobrepo.NewRedisRepository(rdb, a.log)
	} else {
		a.log.Warn("No redis url configured, job state is kept in memory")
		repo = jobrepo.NewMemoryRepository()
	}

	a.build(notify.NewLog(a.log), repo)

	http.Handle("POST /jobs/{$}", httphandler.NewStartJobHandler(a.jobs, a.log))
	http.Handle("GET /jobs/{$}", httphandler.NewJobListHandler(repo, a.log))
	http.Handle("GET /jobs/{id}/{$}", httphandler.NewJobStatusHandler(repo, a.log))
	http.Handle("DELETE /jobs/{id}/{$}", httphandler.NewCancelJobHandler(a.jobs, a.log))

	a.srv = &http.Server{
		Addr: a.cfg.Listen,
	}

	go func() {
		a.log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// RunOnce grabs a single stream and blocks until it finishes. Progress is
// rendered on the console.
func (a *App) RunOnce(rawURL, format string) error {
	a.setupOneShot()

	j, err := a.jobs.Run(context.Background(), rawURL, outputFormat(format))
	if err != nil {
		return err
	}

	a.log.Info("Stream saved", slog.String("path", j.OutputPath))

	return nil
}

// RunBatch reads a batch link-list file and grabs every stream in it, one
// after another. A failed stream does not stop the rest.
func (a *App) RunBatch(path, format string) error {
	a.setupOneShot()

	batch, err := batchadapter.NewBatchAdapter(a.log).FromFile(path)
	if err != nil {
		return fmt.Errorf("cannot read batch file: %w", err)
	}

	batchFormat := batch.Format
	if format != "" {
		batchFormat = outputFormat(format)
	}

	if batch.Title != "" {
		fmt.Printf("Batch: %s (%d streams)\n", batch.Title, len(batch.URLs))
	}

	var failed int

	for i, u := range batch.URLs {
		fmt.Printf("[%d/%d] %s\n", i+1, len(batch.URLs), u)

		if _, err := a.jobs.Run(context.Background(), u, batchFormat); err != nil {
			a.log.Error("Stream failed", slog.String("url", u), slog.Any("error", err))
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d streams failed", failed, len(batch.URLs))
	}

	return nil
}

func (a *App) Stop() {
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.srv.Shutdown(ctx)
	}

	if a.jobs != nil {
		a.jobs.Shutdown()
	}
}

func (a *App) setupOneShot() {
	a.cfg = config.MustLoad(a.cfgPath)
	a.log = newLogger(a.cfg.LogLevel)
	a.build(notify.NewConsole(os.Stdout), jobrepo.NewMemoryRepository())
}

func (a *App) build(notifier sjob.Notifier, repo jobRepository) {
	if err := os.MkdirAll(a.cfg.DownloadConfig.WorkDir, 0o755); err != nil {
		panic(err)
	}

	client := hlsadapter.NewHTTPClient(&a.cfg.DownloadConfig)
	resolver := hlsadapter.NewResolver(client, &a.cfg.DownloadConfig, a.log)
	fetcher := hlsadapter.NewSegmentFetcher(client, &a.cfg.DownloadConfig, a.log)
	assembler := assemble.New(fetcher, &a.cfg.DownloadConfig, a.log)
	converter := ffmpegadapter.NewConverter(&a.cfg.ConvertConfig, a.log)

	a.jobs = sjob.NewService(resolver, assembler, converter, notifier, repo, a.cfg, a.log)
}

func newLogger(level string) *slog.Logger {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}

	return slog.New(slog.NewTextHandler(os.Stderr, lo))
}

func outputFormat(format string) entity.OutputFormat {
	if format == "" {
		return entity.FormatRawContainer
	}

	return entity.OutputFormat(format)
}
