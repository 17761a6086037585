package assemble

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/config"
	"github.com/hlsgrab/hlsgrab/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func makeSegments(n int) []entity.Segment {
	segments := make([]entity.Segment, n)
	for i := range segments {
		segments[i] = entity.Segment{Index: i, URL: fmt.Sprintf("http://test/seg/%d", i)}
	}

	return segments
}

func segmentIndex(url string) int {
	i, _ := strconv.Atoi(url[strings.LastIndex(url, "/")+1:])

	return i
}

func marker(i int) string {
	return fmt.Sprintf("segment-%03d|", i)
}

func newAssembler(fs afero.Fs, fetcher SegmentFetcher, strict bool) *Assembler {
	cfg := &config.DownloadConfig{Workers: 4, Strict: strict}

	return NewWithFS(fs, fetcher, cfg, testLogger())
}

func TestAssembleWritesSegmentsInPlaylistOrder(t *testing.T) {
	const total = 20

	fs := afero.NewMemMapFs()

	// Later segments finish first so the writer has to buffer out-of-order
	// completions.
	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		i := segmentIndex(url)
		time.Sleep(time.Duration(total-i) * time.Millisecond)

		return []byte(marker(i)), nil
	})

	var progress []Progress

	bytes, err := newAssembler(fs, fetcher, false).Assemble(
		context.Background(), makeSegments(total), "/out.ts",
		func(p Progress) { progress = append(progress, p) })
	require.NoError(t, err)

	var want strings.Builder
	for i := 0; i < total; i++ {
		want.WriteString(marker(i))
	}

	data, err := afero.ReadFile(fs, "/out.ts")
	require.NoError(t, err)
	assert.Equal(t, want.String(), string(data))
	assert.EqualValues(t, len(want.String()), bytes)

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Done, progress[i-1].Done, "progress must be monotonic")
	}

	final := progress[len(progress)-1]
	assert.Equal(t, total, final.Done)
	assert.Equal(t, total, final.Total)
	assert.Zero(t, final.Failed)
}

func TestAssembleBestEffortSkipsFailedSegment(t *testing.T) {
	fs := afero.NewMemMapFs()

	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		i := segmentIndex(url)
		if i == 2 {
			return nil, fmt.Errorf("%w: boom", common.ErrFetch)
		}

		return []byte(marker(i)), nil
	})

	bytes, err := newAssembler(fs, fetcher, false).Assemble(
		context.Background(), makeSegments(5), "/out.ts", nil)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/out.ts")
	require.NoError(t, err)
	assert.Equal(t, marker(0)+marker(1)+marker(3)+marker(4), string(data))
	assert.EqualValues(t, len(data), bytes)
}

func TestAssembleStrictAbortsOnFailedSegment(t *testing.T) {
	fs := afero.NewMemMapFs()

	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		i := segmentIndex(url)
		if i == 2 {
			return nil, fmt.Errorf("%w: boom", common.ErrFetch)
		}

		return []byte(marker(i)), nil
	})

	_, err := newAssembler(fs, fetcher, true).Assemble(
		context.Background(), makeSegments(5), "/out.ts", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFetch)

	exists, err := afero.Exists(fs, "/out.ts")
	require.NoError(t, err)
	assert.False(t, exists, "partial output must be removed")
}

func TestAssembleAllSegmentsFailed(t *testing.T) {
	fs := afero.NewMemMapFs()

	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return nil, fmt.Errorf("%w: status 500", common.ErrFetch)
	})

	_, err := newAssembler(fs, fetcher, false).Assemble(
		context.Background(), makeSegments(10), "/out.ts", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrEmptyOutput)

	exists, err := afero.Exists(fs, "/out.ts")
	require.NoError(t, err)
	assert.False(t, exists, "a zero-byte output must not be left behind")
}

func TestAssembleCancellation(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if segmentIndex(url) == 0 {
			return []byte(marker(0)), nil
		}

		<-ctx.Done()

		return nil, ctx.Err()
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newAssembler(fs, fetcher, false).Assemble(ctx, makeSegments(10), "/out.ts", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	exists, err := afero.Exists(fs, "/out.ts")
	require.NoError(t, err)
	assert.False(t, exists, "cancellation must remove the partial output")
}

func TestAssembleNoSegments(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := newAssembler(fs, fetcherFunc(nil), false).Assemble(
		context.Background(), nil, "/out.ts", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoSegments)
}
