// Package history records completed import runs.
//
// Only run metadata is kept (target, file name, counts, outcome). Record
// contents and file bytes are never stored. Runs live in PostgreSQL when a
// database is configured and in a bounded in-memory ring otherwise.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the final outcome of an import run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run describes one upload attempt that reached the network.
type Run struct {
	ID         uuid.UUID `json:"id"`
	SessionID  string    `json:"sessionId"`
	Target     string    `json:"target"`
	FileName   string    `json:"fileName"`
	Format     string    `json:"format"`
	Records    int       `json:"records"`
	Submitted  int       `json:"submitted"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists import runs.
type Store interface {
	// Record saves a finished run. A zero ID is replaced with a new UUID.
	Record(ctx context.Context, run Run) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)

	// Purge deletes runs that started before cutoff and returns the count.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore keeps the most recent runs in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	runs []Run // oldest first
	size int
}

// NewMemoryStore creates a store holding at most size runs.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = 200
	}
	return &MemoryStore{size: size}
}

func (m *MemoryStore) Record(_ context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)
	if over := len(m.runs) - m.size; over > 0 {
		m.runs = append([]Run(nil), m.runs[over:]...)
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}

	out := make([]Run, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.runs[:0]
	var purged int64
	for _, r := range m.runs {
		if r.StartedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	m.runs = kept
	return purged, nil
}
