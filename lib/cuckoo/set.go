package cuckoo

// Set is the payload-free variant. Buckets shrink to half a cache line
// (two buckets per line), so a lookup touching both homes can still stay
// within two lines. All algorithmic behavior is shared with Table.
type Set struct {
	t Table[struct{}]
}

// SetCursor is the cursor type issued by Set lookups; its Value carries
// nothing.
type SetCursor = Cursor[struct{}]

func NewSet(capacity int, opts ...Option[struct{}]) (*Set, error) {
	t, err := NewTable[struct{}](capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &Set{t: *t}, nil
}

func (s *Set) Insert(key uint64) error {
	return s.t.Insert(key, struct{}{})
}

func (s *Set) Find(key uint64) SetCursor {
	return s.t.Find(key)
}

func (s *Set) FindBatched(keys []uint64, results []SetCursor) error {
	return s.t.FindBatched(keys, results)
}

func (s *Set) Erase(c SetCursor) {
	s.t.Erase(c)
}

func (s *Set) Size() int {
	return s.t.Size()
}

func (s *Set) LoadFactor() float64 {
	return s.t.LoadFactor()
}

func (s *Set) Close() error {
	return s.t.Close()
}
