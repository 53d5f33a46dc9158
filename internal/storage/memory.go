package storage

import (
	"context"
	"sync"

	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/internal/errors"
)

// MemoryBackend keeps records in a map keyed by footprint. Sessions share
// the map; a footprint is stored at most once.
type MemoryBackend struct {
	mu       sync.RWMutex
	mode     Mode
	records  map[orb.Bound]Record
	prepared bool
	closed   bool
}

func newMemoryBackend(cfg Config) (Backend, error) {
	return NewMemoryBackend(cfg.Mode), nil
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend(mode Mode) *MemoryBackend {
	return &MemoryBackend{
		mode:    mode,
		records: make(map[orb.Bound]Record),
	}
}

// PrepareEnvironment marks the backend ready. It never fails.
func (b *MemoryBackend) PrepareEnvironment(ctx context.Context) error {
	b.mu.Lock()
	b.prepared = true
	b.mu.Unlock()
	return nil
}

// Prepared reports whether PrepareEnvironment ran.
func (b *MemoryBackend) Prepared() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.prepared
}

// Open returns a session over the shared map.
func (b *MemoryBackend) Open(ctx context.Context, tile string) (Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errors.ErrSessionClosed
	}
	return &memorySession{backend: b}, nil
}

// Close drops nothing; records stay readable.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Get returns the record stored for footprint.
func (b *MemoryBackend) Get(footprint orb.Bound) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[footprint]
	return r, ok
}

// Records returns a copy of every stored record.
func (b *MemoryBackend) Records() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Record, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, r)
	}
	return out
}

type memorySession struct {
	backend *MemoryBackend
	closed  bool
}

func (s *memorySession) Exists(ctx context.Context, footprint orb.Bound) (bool, error) {
	if s.closed {
		return false, errors.ErrSessionClosed
	}
	_, ok := s.backend.Get(footprint)
	return ok, nil
}

func (s *memorySession) Insert(ctx context.Context, rec Record) error {
	if s.closed {
		return errors.ErrSessionClosed
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if _, ok := s.backend.records[rec.Footprint]; ok {
		return errors.ErrFootprintExists
	}
	s.backend.records[rec.Footprint] = rec
	return nil
}

func (s *memorySession) Close() error {
	s.closed = true
	return nil
}
