package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hlsgrab/hlsgrab/internal/entity"
)

const barWidth = 50

// Console renders a carriage-return progress bar for one-shot runs.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Progress(_ context.Context, job *entity.Job, done, total int, elapsed time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	percent := float64(done) / float64(total)
	filled := int(percent * float64(barWidth))
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	fmt.Fprintf(c.w, "\r[%s] %5.1f%% (%d/%d) %s", bar, percent*100, done, total, elapsed.Round(time.Second))

	return nil
}

func (c *Console) Complete(_ context.Context, job *entity.Job, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.w, "\ndone: %s\n", path)

	return nil
}

func (c *Console) Failed(_ context.Context, job *entity.Job, jobErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.w, "\nfailed: %v\n", jobErr)

	return nil
}
