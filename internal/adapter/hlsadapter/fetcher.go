package hlsadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/config"
)

// SegmentFetcher downloads one segment with bounded retries and a fixed
// backoff between attempts.
type SegmentFetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

func NewSegmentFetcher(client *http.Client, cfg *config.DownloadConfig, log *slog.Logger) *SegmentFetcher {
	return &SegmentFetcher{
		client:   client,
		attempts: cfg.SegmentAttempts,
		backoff:  cfg.RetryBackoff.Std(),
		log:      log.With(slog.String("item", "SegmentFetcher")),
	}
}

func (f *SegmentFetcher) Fetch(ctx context.Context, segmentURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		data, err := f.fetchOnce(ctx, segmentURL)
		if err == nil {
			return data, nil
		}

		lastErr = err
		f.log.Warn("Segment fetch attempt failed",
			slog.String("url", segmentURL), slog.Int("attempt", attempt), slog.Any("error", err))

		if attempt == f.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.backoff):
		}
	}

	return nil, fmt.Errorf("%w: segment %s failed after %d attempts: %v",
		common.ErrFetch, segmentURL, f.attempts, lastErr)
}

func (f *SegmentFetcher) fetchOnce(ctx context.Context, segmentURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segmentURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)

		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
