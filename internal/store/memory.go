package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/city-signals/internal/db"
)

// Memory is an in-process Store. It enforces the same unique constraints
// as the PostgreSQL schema and is used for local runs and tests.
type Memory struct {
	mu         sync.RWMutex
	seq        int64
	containers map[uuid.UUID]*memEntry[db.WasteContainer]
	signals    map[uuid.UUID]*memEntry[db.Signal]
	now        func() time.Time
}

type memEntry[T any] struct {
	seq int64
	doc T
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		containers: make(map[uuid.UUID]*memEntry[db.WasteContainer]),
		signals:    make(map[uuid.UUID]*memEntry[db.Signal]),
		now:        time.Now,
	}
}

func (m *Memory) FindContainers(ctx context.Context, filter ContainerFilter, p Pagination) (Page[db.WasteContainer], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*memEntry[db.WasteContainer]
	for _, e := range m.containers {
		c := &e.doc
		if filter.PublicNumber != "" && c.PublicNumber != filter.PublicNumber {
			continue
		}
		if filter.LegacyID != "" && c.LegacyID != filter.LegacyID {
			continue
		}
		if filter.Within != nil && !filter.Within.Contains(c.Location.Lat(), c.Location.Lon()) {
			continue
		}
		matched = append(matched, e)
	}

	return paginate(matched, p, cloneContainer), nil
}

func (m *Memory) FindContainersWithOpenSignals(ctx context.Context, p Pagination) (Page[ContainerSignalCount], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range m.signals {
		if e.doc.Category == db.CategoryWasteContainer && e.doc.ReferenceID() != "" && !e.doc.Status.IsTerminal() {
			counts[e.doc.ReferenceID()]++
		}
	}

	var docs []ContainerSignalCount
	for _, e := range m.containers {
		if n := counts[e.doc.PublicNumber]; n > 0 {
			docs = append(docs, ContainerSignalCount{WasteContainer: cloneContainer(e.doc), OpenSignals: n})
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].OpenSignals != docs[j].OpenSignals {
			return docs[i].OpenSignals > docs[j].OpenSignals
		}
		return docs[i].PublicNumber < docs[j].PublicNumber
	})

	p = p.Normalize()
	total := len(docs)
	start := min(p.Offset(), total)
	end := min(start+p.Limit, total)
	return NewPage(docs[start:end], total, p), nil
}

func (m *Memory) FindContainerByID(ctx context.Context, id uuid.UUID) (*db.WasteContainer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.containers[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneContainer(e.doc)
	return &c, nil
}

func (m *Memory) CreateContainer(ctx context.Context, container *db.WasteContainer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.containers {
		if e.doc.PublicNumber == container.PublicNumber {
			return ErrConflict
		}
		if container.LegacyID != "" && e.doc.LegacyID == container.LegacyID {
			return ErrConflict
		}
	}

	now := m.now()
	container.ID = uuid.New()
	if container.CreatedAt.IsZero() {
		container.CreatedAt = now
	}
	container.UpdatedAt = now
	if container.State == nil {
		container.State = []db.ContainerCondition{}
	}

	m.seq++
	m.containers[container.ID] = &memEntry[db.WasteContainer]{seq: m.seq, doc: cloneContainer(*container)}
	return nil
}

func (m *Memory) UpdateContainer(ctx context.Context, id uuid.UUID, patch db.ContainerPatch) (*db.WasteContainer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.containers[id]
	if !ok {
		return nil, ErrNotFound
	}

	c := &e.doc
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.State != nil {
		c.State = slices.Clone(*patch.State)
	}
	if patch.Notes != nil {
		c.Notes = *patch.Notes
	}
	if patch.LastCleaned != nil {
		t := *patch.LastCleaned
		c.LastCleaned = &t
	}
	c.UpdatedAt = m.now()

	out := cloneContainer(*c)
	return &out, nil
}

func (m *Memory) FindSignals(ctx context.Context, filter SignalFilter, p Pagination) (Page[db.Signal], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*memEntry[db.Signal]
	for _, e := range m.signals {
		if matchesSignal(&e.doc, filter) {
			matched = append(matched, e)
		}
	}

	return paginate(matched, p, cloneSignal), nil
}

func (m *Memory) FindSignalByID(ctx context.Context, id uuid.UUID) (*db.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.signals[id]
	if !ok {
		return nil, ErrNotFound
	}
	s := cloneSignal(e.doc)
	return &s, nil
}

func (m *Memory) CreateSignal(ctx context.Context, signal *db.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictsWithOpenReport(signal, uuid.Nil) {
		return ErrConflict
	}

	now := m.now()
	signal.ID = uuid.New()
	signal.CreatedAt = now
	signal.UpdatedAt = now

	m.seq++
	m.signals[signal.ID] = &memEntry[db.Signal]{seq: m.seq, doc: cloneSignal(*signal)}
	return nil
}

func (m *Memory) UpdateSignal(ctx context.Context, id uuid.UUID, patch db.SignalPatch) (*db.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.signals[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := cloneSignal(e.doc)
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Address != nil {
		next.Address = *patch.Address
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.AdminNotes != nil {
		next.AdminNotes = *patch.AdminNotes
	}
	if patch.ContainerState != nil {
		next.ContainerState = slices.Clone(*patch.ContainerState)
	}

	if m.conflictsWithOpenReport(&next, id) {
		return nil, ErrConflict
	}

	next.UpdatedAt = m.now()
	e.doc = next

	out := cloneSignal(next)
	return &out, nil
}

// conflictsWithOpenReport mirrors the partial unique index on open
// waste-container signals. Callers must hold the write lock.
func (m *Memory) conflictsWithOpenReport(s *db.Signal, self uuid.UUID) bool {
	if !IsOpenWasteReport(s) {
		return false
	}
	for id, e := range m.signals {
		if id == self || !IsOpenWasteReport(&e.doc) {
			continue
		}
		if e.doc.ReporterUniqueID == s.ReporterUniqueID &&
			e.doc.ReferenceID() == s.ReferenceID() &&
			e.doc.Category == s.Category {
			return true
		}
	}
	return false
}

func matchesSignal(s *db.Signal, f SignalFilter) bool {
	if f.ReporterUniqueID != "" && s.ReporterUniqueID != f.ReporterUniqueID {
		return false
	}
	if f.ReferenceID != "" && s.ReferenceID() != f.ReferenceID {
		return false
	}
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if slices.Contains(f.StatusNotIn, s.Status) {
		return false
	}
	return true
}

// paginate orders entries newest first and cuts the requested page
func paginate[T any](entries []*memEntry[T], p Pagination, clone func(T) T) Page[T] {
	p = p.Normalize()
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })

	docs := []T{}
	for i := p.Offset(); i < len(entries) && len(docs) < p.Limit; i++ {
		docs = append(docs, clone(entries[i].doc))
	}
	return NewPage(docs, len(entries), p)
}

func cloneContainer(c db.WasteContainer) db.WasteContainer {
	c.State = slices.Clone(c.State)
	if c.State == nil {
		c.State = []db.ContainerCondition{}
	}
	if c.LastCleaned != nil {
		t := *c.LastCleaned
		c.LastCleaned = &t
	}
	return c
}

func cloneSignal(s db.Signal) db.Signal {
	if s.CityObject != nil {
		obj := *s.CityObject
		s.CityObject = &obj
	}
	if s.Location != nil {
		loc := *s.Location
		s.Location = &loc
	}
	s.ContainerState = slices.Clone(s.ContainerState)
	return s
}
