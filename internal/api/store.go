package api

import "sync"

// DefaultStoreSize is the number of generations kept for retrieval.
const DefaultStoreSize = 128

// GenerationStore keeps the most recent generations, evicting the oldest
// once full.
type GenerationStore struct {
	mu    sync.Mutex
	limit int
	order []string
	items map[string]GenerateResponse
}

func NewGenerationStore(limit int) *GenerationStore {
	if limit <= 0 {
		limit = DefaultStoreSize
	}
	return &GenerationStore{
		limit: limit,
		items: make(map[string]GenerateResponse),
	}
}

func (s *GenerationStore) Put(resp GenerateResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.items[resp.ID] = resp
	for len(s.order) > s.limit {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *GenerationStore) Get(id string) (GenerateResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.items[id]
	return resp, ok
}

func (s *GenerationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *GenerationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
