package job

import (
	"context"
	"sort"
	"sync"

	"github.com/hlsgrab/hlsgrab/internal/common"
	"github.com/hlsgrab/hlsgrab/internal/entity"
)

// memoryRepository keeps jobs in a mutex-guarded map. Used for one-shot runs
// without redis and in tests.
type memoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]entity.Job
}

func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{
		jobs: make(map[string]entity.Job),
	}
}

func (r *memoryRepository) Save(_ context.Context, j *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[j.ID] = *j

	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, exists := r.jobs[id]
	if !exists {
		return nil, common.ErrJobNotFound
	}

	return &j, nil
}

func (r *memoryRepository) List(_ context.Context) ([]*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*entity.Job, 0, len(r.jobs))
	for id := range r.jobs {
		j := r.jobs[id]
		jobs = append(jobs, &j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].SubmittedAt.Before(jobs[k].SubmittedAt)
	})

	return jobs, nil
}
