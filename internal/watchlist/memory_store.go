package watchlist

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps items in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]*Item
	unique bool
	seq    int64
	now    func() time.Time
}

// NewMemoryStore returns an empty store. When unique is set, Create and
// Update reject a second item with the same owner and symbol, mirroring the
// postgres unique index.
func NewMemoryStore(unique bool) *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]*Item),
		unique: unique,
		now:    time.Now,
	}
}

func cloneItem(it *Item) *Item {
	cp := *it
	if it.PriceAlert != nil {
		v := *it.PriceAlert
		cp.PriceAlert = &v
	}
	return &cp
}

// tick returns a strictly increasing timestamp so newest-first ordering is
// stable even when the clock does not advance between inserts.
func (s *MemoryStore) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq))
}

// symbolTakenLocked reports whether another item of owner already uses symbol.
func (s *MemoryStore) symbolTakenLocked(owner, symbol, exceptID string) bool {
	for _, it := range s.items {
		if it.ID != exceptID && it.UserID == owner && it.Symbol == symbol {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Create(ctx context.Context, it *Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unique && s.symbolTakenLocked(it.UserID, it.Symbol, "") {
		return ErrDuplicateSymbol
	}

	now := s.tick()
	it.CreatedAt, it.UpdatedAt = now, now
	s.items[it.ID] = cloneItem(it)
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return cloneItem(it), nil
}

func (s *MemoryStore) FindByOwnerSymbol(ctx context.Context, ownerID, symbol string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.items {
		if it.UserID == ownerID && it.Symbol == symbol {
			return cloneItem(it), nil
		}
	}
	return nil, ErrItemNotFound
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, 0)
	for _, it := range s.items {
		if it.UserID == ownerID {
			out = append(out, *cloneItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, f Fields) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	if s.unique && f.Symbol != nil && s.symbolTakenLocked(it.UserID, *f.Symbol, id) {
		return nil, ErrDuplicateSymbol
	}

	f.apply(it)
	it.UpdatedAt = s.tick()
	return cloneItem(it), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, it := range s.items {
		if it.UserID == ownerID {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}
