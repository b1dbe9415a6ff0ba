package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

// MemoryStore keeps receipts in process memory. It backs tests and local
// development; production deployments use the bolt or gorm stores.
type MemoryStore struct {
	mu       sync.RWMutex // guards the maps and insertion order
	records  map[string]*memRecord
	byHash   map[string]string
	order    []string
	maxBytes int64
}

type memRecord struct {
	mu         sync.Mutex // guards meta: readers clone and writers update under it
	meta       receipt.Meta
	data       []byte
	deleted    bool
	prevStatus receipt.Status
}

// NewMemoryStore returns an empty store with the given upload cap
// (0 means DefaultMaxUploadBytes).
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*memRecord),
		byHash:   make(map[string]string),
		maxBytes: maxBytes,
	}
}

func (s *MemoryStore) Add(_ context.Context, up Upload) (AddResult, error) {
	hash, err := ValidateUpload(up, s.maxBytes)
	if err != nil {
		return AddResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byHash[hash]; ok {
		rec := s.records[id]
		return AddResult{Meta: cloneMeta(&rec.meta), Duplicate: true}, nil
	}
	data := make([]byte, len(up.Data))
	copy(data, up.Data)
	rec := &memRecord{
		meta: receipt.Meta{
			ID:           uuid.NewString(),
			ContentHash:  hash,
			MimeType:     up.MimeType,
			SizeBytes:    int64(len(up.Data)),
			OriginalName: up.Name,
			Status:       receipt.StatusQueued,
			UploadedAt:   time.Now().UTC(),
		},
		data: data,
	}
	s.records[rec.meta.ID] = rec
	s.byHash[hash] = rec.meta.ID
	s.order = append(s.order, rec.meta.ID)
	return AddResult{Meta: cloneMeta(&rec.meta)}, nil
}

func (s *MemoryStore) FindByHash(_ context.Context, hash string) (*receipt.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	rec := s.records[id]
	if rec.deleted {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	m := cloneMeta(&rec.meta)
	rec.mu.Unlock()
	return &m, nil
}

func (s *MemoryStore) List(_ context.Context) ([]receipt.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]receipt.Meta, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if rec.deleted {
			continue
		}
		rec.mu.Lock()
		out = append(out, cloneMeta(&rec.meta))
		rec.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*receipt.Meta, error) {
	rec, err := s.live(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	m := cloneMeta(&rec.meta)
	return &m, nil
}

func (s *MemoryStore) Buffer(_ context.Context, id string) ([]byte, error) {
	rec, err := s.live(id)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(rec.data))
	copy(out, rec.data)
	return out, nil
}

func (s *MemoryStore) Approve(_ context.Context, id string, parsed receipt.Parsed, q receipt.Quality, meta receipt.ProcessingMeta) error {
	rec, err := s.live(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.meta.Status = receipt.StatusReviewed
	rec.meta.Parsed = &parsed
	rec.meta.Quality = &q
	rec.meta.Processing = &meta
	return nil
}

func (s *MemoryStore) SetProcessingMeta(_ context.Context, id string, meta receipt.ProcessingMeta) error {
	rec, err := s.live(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.meta.Processing = &meta
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) (*receipt.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.deleted {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.deleted = true
	rec.prevStatus = rec.meta.Status
	m := cloneMeta(&rec.meta)
	return &m, nil
}

func (s *MemoryStore) Restore(_ context.Context, id string) (*receipt.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || !rec.deleted {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.deleted = false
	if rec.prevStatus != "" {
		rec.meta.Status = rec.prevStatus
	} else {
		rec.meta.Status = receipt.StatusRestored
	}
	m := cloneMeta(&rec.meta)
	return &m, nil
}

// live resolves a non-deleted record by id.
func (s *MemoryStore) live(id string) (*memRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || rec.deleted {
		return nil, ErrNotFound
	}
	return rec, nil
}

// cloneMeta deep-copies a Meta so callers never alias store internals.
func cloneMeta(m *receipt.Meta) receipt.Meta {
	out := *m
	if m.Parsed != nil {
		p := *m.Parsed
		p.Items = append([]receipt.Item(nil), m.Parsed.Items...)
		out.Parsed = &p
	}
	if m.Processing != nil {
		pm := *m.Processing
		out.Processing = &pm
	}
	if m.Quality != nil {
		q := *m.Quality
		q.Issues = append([]string(nil), m.Quality.Issues...)
		out.Quality = &q
	}
	return out
}
