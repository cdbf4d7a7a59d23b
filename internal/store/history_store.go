package store

import (
	"context"
	"sync"
	"time"
)

// TransformRecord is the durable trail of one completed transform, kept for
// usage reporting after the in-memory batch is gone.
type TransformRecord struct {
	JobID          string
	Tool           string
	Format         string
	OriginalSize   int
	CompressedSize int
	SizeTargetMet  bool
	DurationMS     int64
	CreatedAt      time.Time
}

type HistoryStore interface {
	Record(ctx context.Context, rec TransformRecord) error
}

// MemoryHistoryStore is the single-process fallback when no database is
// configured.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	records []TransformRecord
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) Record(_ context.Context, rec TransformRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryHistoryStore) Records() []TransformRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TransformRecord, len(s.records))
	copy(out, s.records)
	return out
}
