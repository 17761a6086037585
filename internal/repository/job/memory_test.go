package job

import (
	"context"
	"testing"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrJobNotFound)

	first := &entity.Job{ID: "a", URL: "https://example.com/a.m3u8", Status: entity.JobStatusQueued,
		SubmittedAt: time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC)}
	second := &entity.Job{ID: "b", URL: "https://example.com/b.m3u8", Status: entity.JobStatusQueued,
		SubmittedAt: time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// Stored jobs are copies, later mutation of the original must not leak.
	first.Status = entity.JobStatusFailed
	got, err = repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, got.Status)

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].ID, "list is ordered by submission time")
	assert.Equal(t, "a", jobs[1].ID)
}
