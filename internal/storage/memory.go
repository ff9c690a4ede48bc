package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"contas/internal/core"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in maps. It backs tests and the "memory"
// data backend.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]core.Transaction
	entities     map[core.EntityType]map[string]core.Entity
	now          func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: map[string]core.Transaction{},
		entities: map[core.EntityType]map[string]core.Entity{
			core.EntityCompany:      {},
			core.EntityCounterparty: {},
			core.EntityCategory:     {},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

func (m *MemoryStore) ListTransactions(_ context.Context, ownerID string, q TransactionQuery) (TransactionPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := []core.Transaction{}
	for _, t := range m.transactions {
		if t.OwnerID == ownerID && q.Filter.Match(t) {
			items = append(items, t)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if c := a.OccurredOn.Compare(b.OccurredOn); c != 0 {
			return c > 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	page := TransactionPage{Total: len(items)}
	if q.Offset > 0 {
		if q.Offset >= len(items) {
			items = items[:0]
		} else {
			items = items[q.Offset:]
		}
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	page.Items = items
	return page, nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transactions[id]
	if !ok || t.OwnerID != ownerID {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return t, nil
}

func (m *MemoryStore) InsertTransaction(_ context.Context, t *core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRefs(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, dup := m.transactions[t.ID]; dup {
		return core.StoreFailure("insert transaction", fmt.Errorf("duplicate id %s", t.ID))
	}
	now := m.now()
	t.CreatedAt, t.UpdatedAt = now, now
	m.transactions[t.ID] = *t
	return nil
}

func (m *MemoryStore) UpdateTransaction(_ context.Context, t *core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.transactions[t.ID]
	if !ok || old.OwnerID != t.OwnerID {
		return core.NotFound("transaction", t.ID)
	}
	if err := m.checkRefs(t); err != nil {
		return err
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = m.now()
	m.transactions[t.ID] = *t
	return nil
}

func (m *MemoryStore) DeleteTransaction(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok || t.OwnerID != ownerID {
		return core.NotFound("transaction", id)
	}
	delete(m.transactions, id)
	return nil
}

// checkRefs mirrors the foreign keys of the SQL schema.
func (m *MemoryStore) checkRefs(t *core.Transaction) error {
	refs := map[core.EntityType]string{
		core.EntityCompany:      t.CompanyID,
		core.EntityCounterparty: t.CounterpartyID,
		core.EntityCategory:     t.CategoryID,
	}
	for typ, id := range refs {
		if id == "" {
			continue
		}
		if _, ok := m.entities[typ][id]; !ok {
			return core.StoreFailure("insert transaction", fmt.Errorf("foreign key %s %s", typ, id))
		}
	}
	return nil
}

func (m *MemoryStore) ListEntities(_ context.Context, ownerID string, typ core.EntityType) ([]core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.entities[typ]
	if !ok {
		return nil, core.Validation("type", core.ErrInvalidEntityType.Error())
	}
	out := []core.Entity{}
	for _, e := range table {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetEntity(_ context.Context, ownerID string, typ core.EntityType, id string) (core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.entities[typ]
	if !ok {
		return core.Entity{}, core.Validation("type", core.ErrInvalidEntityType.Error())
	}
	e, ok := table[id]
	if !ok || e.OwnerID != ownerID {
		return core.Entity{}, core.NotFound(string(typ), id)
	}
	return e, nil
}

func (m *MemoryStore) InsertEntity(_ context.Context, e *core.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.entities[e.Type]
	if !ok {
		return core.Validation("type", core.ErrInvalidEntityType.Error())
	}
	if m.nameTaken(table, e) {
		return core.Validation("name", fmt.Sprintf("%s %q already exists", e.Type, e.Name))
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := m.now()
	e.CreatedAt, e.UpdatedAt = now, now
	table[e.ID] = *e
	return nil
}

func (m *MemoryStore) UpdateEntity(_ context.Context, e *core.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.entities[e.Type]
	if !ok {
		return core.Validation("type", core.ErrInvalidEntityType.Error())
	}
	old, ok := table[e.ID]
	if !ok || old.OwnerID != e.OwnerID {
		return core.NotFound(string(e.Type), e.ID)
	}
	if m.nameTaken(table, e) {
		return core.Validation("name", fmt.Sprintf("%s %q already exists", e.Type, e.Name))
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = m.now()
	table[e.ID] = *e
	return nil
}

func (m *MemoryStore) DeleteEntity(_ context.Context, ownerID string, typ core.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.entities[typ]
	if !ok {
		return core.Validation("type", core.ErrInvalidEntityType.Error())
	}
	e, ok := table[id]
	if !ok || e.OwnerID != ownerID {
		return core.NotFound(string(typ), id)
	}
	delete(table, id)

	for tid, t := range m.transactions {
		switch {
		case typ == core.EntityCompany && t.CompanyID == id:
			t.CompanyID = ""
		case typ == core.EntityCounterparty && t.CounterpartyID == id:
			t.CounterpartyID = ""
		case typ == core.EntityCategory && t.CategoryID == id:
			t.CategoryID = ""
		default:
			continue
		}
		m.transactions[tid] = t
	}
	return nil
}

func (m *MemoryStore) nameTaken(table map[string]core.Entity, e *core.Entity) bool {
	for _, other := range table {
		if other.OwnerID == e.OwnerID && other.Name == e.Name && other.ID != e.ID {
			return true
		}
	}
	return false
}
