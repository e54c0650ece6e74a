package storage

// MemoryStore is a run-scoped seen-set. It is not safe for concurrent use;
// the harvest loop is its only caller.
type MemoryStore struct {
	seen map[string]struct{}
}

// NewMemoryStore returns an empty seen-set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) SeenArticle(id string) (bool, error) {
	_, ok := m.seen[id]
	return ok, nil
}

func (m *MemoryStore) MarkArticle(id string) error {
	m.seen[id] = struct{}{}
	return nil
}

// Len returns how many IDs have been marked.
func (m *MemoryStore) Len() int { return len(m.seen) }
