package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/config"
	"github.com/hlsgrab/hlsgrab/internal/entity"
	"github.com/spf13/afero"
)

const serviceName = "assemble"

type SegmentFetcher interface {
	Fetch(ctx context.Context, segmentURL string) ([]byte, error)
}

// Progress is a snapshot of one job's assembly state. Done counts segments
// that reached the writer, successful or not; Done never decreases between
// callbacks.
type Progress struct {
	Done    int
	Failed  int
	Total   int
	Bytes   int64
	Elapsed time.Duration
}

// Assembler downloads segments with a bounded worker pool and appends their
// bytes to a single output file strictly in playlist order. Out-of-order
// completions wait in memory until their predecessors have been written.
type Assembler struct {
	fs      afero.Fs
	fetcher SegmentFetcher
	workers int
	strict  bool
	log     *slog.Logger
}

func New(fetcher SegmentFetcher, cfg *config.DownloadConfig, log *slog.Logger) *Assembler {
	return NewWithFS(afero.NewOsFs(), fetcher, cfg, log)
}

func NewWithFS(fs afero.Fs, fetcher SegmentFetcher, cfg *config.DownloadConfig, log *slog.Logger) *Assembler {
	return &Assembler{
		fs:      fs,
		fetcher: fetcher,
		workers: cfg.Workers,
		strict:  cfg.Strict,
		log:     log.With(slog.String("service", serviceName)),
	}
}

type result struct {
	index int
	data  []byte
	err   error
}

// Assemble writes the fetched segments to outputPath and returns the number
// of bytes written. In best-effort mode a segment that exhausted its retries
// is skipped; in strict mode it aborts the job. A cancelled context or a
// terminal error removes the partial output file.
func (a *Assembler) Assemble(ctx context.Context, segments []entity.Segment, outputPath string, onProgress func(Progress)) (int64, error) {
	total := len(segments)
	if total == 0 {
		return 0, common.ErrNoSegments
	}

	file, err := a.fs.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("cannot create output file: %w", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := a.workers
	if workers > total {
		workers = total
	}

	in := make(chan entity.Segment)
	results := make(chan result, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go a.worker(wctx, n, in, results, &wg)
	}

	go func() {
		defer close(in)

		for _, seg := range segments {
			select {
			case <-wctx.Done():
				return
			case in <- seg:
			}
		}
	}()

	discard := func() {
		cancel()
		file.Close()

		if err := a.fs.Remove(outputPath); err != nil {
			a.log.Error("Cannot remove partial output", slog.String("path", outputPath), slog.Any("error", err))
		}
	}

	var (
		written      int64
		done, failed int
		next         int
		pending      = make(map[int]result, workers)
		start        = time.Now()
	)

	for done < total {
		var res result

		select {
		case <-ctx.Done():
			discard()

			return 0, ctx.Err()
		case res = <-results:
		}

		pending[res.index] = res

		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			if r.err != nil {
				if a.strict {
					discard()

					return 0, fmt.Errorf("segment %d: %w", next, r.err)
				}

				failed++
				a.log.Warn("Skipping failed segment", slog.Int("index", next), slog.Any("error", r.err))
			} else {
				n, werr := file.Write(r.data)
				if werr != nil {
					discard()

					return 0, fmt.Errorf("cannot write segment %d: %w", next, werr)
				}
				written += int64(n)
			}

			next++
			done++

			if onProgress != nil {
				onProgress(Progress{
					Done:    done,
					Failed:  failed,
					Total:   total,
					Bytes:   written,
					Elapsed: time.Since(start),
				})
			}
		}
	}

	wg.Wait()

	if err := file.Close(); err != nil {
		a.fs.Remove(outputPath)

		return 0, fmt.Errorf("cannot close output file: %w", err)
	}

	if written == 0 {
		a.fs.Remove(outputPath)

		return 0, fmt.Errorf("%w: all %d segments failed", common.ErrEmptyOutput, total)
	}

	a.log.Info("Assembly finished",
		slog.String("path", outputPath),
		slog.Int("segments", total),
		slog.Int("failed", failed),
		slog.Int64("bytes", written))

	return written, nil
}

func (a *Assembler) worker(ctx context.Context, n int, in chan entity.Segment, out chan result, wg *sync.WaitGroup) {
	defer wg.Done()

	log := a.log.With(slog.Int("worker_id", n))

	for seg := range in {
		data, err := a.fetcher.Fetch(ctx, seg.URL)
		if err != nil {
			log.Warn("Segment fetch failed", slog.Int("index", seg.Index), slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case out <- result{index: seg.Index, data: data, err: err}:
		}
	}
}
