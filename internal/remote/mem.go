package remote

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Mem is an in-memory Client used by tests and local development. It
// stores records per table and pages through them in insertion order.
// Formula evaluation is delegated to the optional Match hook; when unset,
// queries return the whole table and callers filter locally.
type Mem struct {
	mu       sync.Mutex
	tables   map[string]map[string]Record
	order    map[string][]string
	queries  int
	PageSize int
	Match    func(formula string, r Record) bool
	// FailQuery, when set, makes every Query call return this error.
	FailQuery error
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		tables:   make(map[string]map[string]Record),
		order:    make(map[string][]string),
		PageSize: 100,
	}
}

// Seed inserts a record with a known id, bypassing id generation.
func (m *Mem) Seed(table string, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(table, rec)
}

// Queries reports how many Query calls have been served. Used by cache
// coalescing tests.
func (m *Mem) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

func (m *Mem) put(table string, rec Record) {
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]Record)
	}
	if _, exists := m.tables[table][rec.ID]; !exists {
		m.order[table] = append(m.order[table], rec.ID)
	}
	m.tables[table][rec.ID] = rec
}

func (m *Mem) Query(ctx context.Context, table, formula, pageToken string) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.FailQuery != nil {
		return Page{}, m.FailQuery
	}

	var matched []Record
	for _, id := range m.order[table] {
		rec := m.tables[table][id]
		if m.Match != nil && formula != "" && !m.Match(formula, rec) {
			continue
		}
		matched = append(matched, rec)
	}

	// The page token is the id of the first record of the next page.
	offset := 0
	if pageToken != "" {
		for i, r := range matched {
			if r.ID == pageToken {
				offset = i
				break
			}
		}
	}
	end := offset + m.PageSize
	if end >= len(matched) {
		return Page{Records: matched[offset:]}, nil
	}
	return Page{Records: matched[offset:end], NextToken: matched[end].ID}, nil
}

func (m *Mem) Get(ctx context.Context, table, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[table][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Mem) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := Record{ID: "rec" + uuid.NewString(), Fields: fields}
	m.put(table, rec)
	return rec, nil
}

func (m *Mem) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[table][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	m.tables[table][id] = rec
	return rec, nil
}

func (m *Mem) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table][id]; !ok {
		return ErrNotFound
	}
	delete(m.tables[table], id)
	ids := m.order[table]
	for i, v := range ids {
		if v == id {
			m.order[table] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
