// Package memory is an in-process implementation of the model and history
// stores, used by tests and by the server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/xlcalc/internal/core"
	"github.com/google/uuid"
)

// Store keeps file versions and calculation history in memory.
type Store struct {
	mu      sync.RWMutex
	files   map[string][]core.FileVersion // ascending by version
	models  map[uuid.UUID][]byte
	history map[uuid.UUID][]core.HistoryRecord
	now     func() time.Time
}

var (
	_ core.ModelStore   = (*Store)(nil)
	_ core.HistoryStore = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		files:   make(map[string][]core.FileVersion),
		models:  make(map[uuid.UUID][]byte),
		history: make(map[uuid.UUID][]core.HistoryRecord),
		now:     time.Now,
	}
}

func (s *Store) FindVersions(_ context.Context, name string) ([]core.FileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.files[name]
	out := make([]core.FileVersion, len(versions))
	for i, v := range versions {
		out[len(versions)-1-i] = v
	}
	return out, nil
}

func (s *Store) LoadModel(_ context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, ok := s.models[id]
	if !ok {
		return nil, core.ErrModelNotFound
	}
	return model, nil
}

func (s *Store) CreateVersion(_ context.Context, name string, model []byte) (core.FileVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	if versions := s.files[name]; len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}

	fv := core.FileVersion{
		ID:        uuid.New(),
		Name:      name,
		Version:   next,
		CreatedAt: s.now().UTC(),
	}
	s.files[name] = append(s.files[name], fv)
	s.models[fv.ID] = append([]byte(nil), model...)
	return fv, nil
}

func (s *Store) DeleteAll(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.files[name]
	for _, v := range versions {
		delete(s.models, v.ID)
		delete(s.history, v.ID)
	}
	delete(s.files, name)
	return int64(len(versions)), nil
}

func (s *Store) ListFiles(_ context.Context) ([]core.FileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.FileVersion
	for _, versions := range s.files {
		out = append(out, versions...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (s *Store) RecordCalculation(_ context.Context, rec core.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.history[rec.FileID] = append(s.history[rec.FileID], rec)
	return nil
}

func (s *Store) ListHistory(_ context.Context, fileID uuid.UUID) ([]core.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]core.HistoryRecord(nil), s.history[fileID]...), nil
}

func (s *Store) PruneHistory(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, records := range s.history {
		kept := records[:0]
		for _, rec := range records {
			if rec.CreatedAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, rec)
		}
		s.history[id] = kept
	}
	return n, nil
}
